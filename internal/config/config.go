package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MessagingConfig 定义消息核心的业务配置
type MessagingConfig struct {
	RateLimitWindow time.Duration // 线程内发送限流窗口，默认 10s
	RateLimitBurst  int           // 窗口内最大消息数，默认 5
	MinViewDuration time.Duration // 计为已读的最短停留时长，默认 2s
	MaxBodyBytes    int64         // 请求体大小上限，默认 1MB
}

// ModerationConfig 定义内容审查配置
type ModerationConfig struct {
	MaskToken string // 违禁内容掩码，默认 "****"
}

// PreviewConfig 定义链接预览抓取配置
type PreviewConfig struct {
	Timeout     time.Duration // 单次抓取超时，默认 3s
	MaxAttempts int           // 最大尝试次数，默认 3
	BaseBackoff time.Duration // 重试退避基数，默认 500ms
	Workers     int           // 抓取工作协程数，默认 4
	QueueSize   int           // 抓取队列长度，默认 256
}

// AttachmentConfig 定义附件存储配置
type AttachmentConfig struct {
	Dir     string // 附件根目录，默认 "./data/attachments"
	MaxSize int64  // 单附件大小上限（字节），默认 10MB
}

// AlertingConfig 定义运维告警邮件配置
type AlertingConfig struct {
	SMTPAddr   string   // 外发 SMTP 服务器地址 host:port，留空禁用邮件告警
	Username   string   // SMTP 认证用户名
	Password   string   // SMTP 认证密码
	From       string   // 发件人地址
	Recipients []string // 运维收件人列表
}

// UnitsConfig 定义工作单元数据源（外部交易系统）配置
type UnitsConfig struct {
	BaseURL string        // 交易系统内部 API 根地址，留空使用内置静态数据源（开发模式）
	Token   string        // 服务间调用令牌
	Timeout time.Duration // 单次请求超时，默认 5s
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	AuditDSN        string        // 审计库连接字符串（PostgreSQL），留空退化为日志审计
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis（限流与缓存），默认 false
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "scribemarket"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
	StreamExpiry  time.Duration // 流式令牌有效期，默认 5 分钟
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig     // HTTP 服务器配置
	Messaging  MessagingConfig  // 消息核心配置
	Moderation ModerationConfig // 内容审查配置
	Preview    PreviewConfig    // 链接预览配置
	Attachment AttachmentConfig // 附件存储配置
	Alerting   AlertingConfig   // 告警邮件配置
	Units      UnitsConfig      // 工作单元数据源配置
	CORS       CORSConfig       // 跨域配置
	Log        LogConfig        // 日志配置
	Database   DatabaseConfig   // 数据库配置
	Redis      RedisConfig      // Redis 配置
	JWT        JWTConfig        // JWT 认证配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: SCRIBE_
// 例如: SCRIBE_SERVER_HOST, SCRIBE_JWT_SECRET
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("scribe")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("messaging.rate_limit_window", "10s")
	viper.SetDefault("messaging.rate_limit_burst", 5)
	viper.SetDefault("messaging.min_view_duration", "2s")
	viper.SetDefault("messaging.max_body_bytes", 1<<20)
	viper.SetDefault("moderation.mask_token", "****")
	viper.SetDefault("preview.timeout", "3s")
	viper.SetDefault("preview.max_attempts", 3)
	viper.SetDefault("preview.base_backoff", "500ms")
	viper.SetDefault("preview.workers", 4)
	viper.SetDefault("preview.queue_size", 256)
	viper.SetDefault("attachment.dir", "./data/attachments")
	viper.SetDefault("attachment.max_size", 10<<20)
	viper.SetDefault("alerting.smtp_addr", "")
	viper.SetDefault("alerting.username", "")
	viper.SetDefault("alerting.password", "")
	viper.SetDefault("alerting.from", "alerts@scribemarket.local")
	viper.SetDefault("alerting.recipients", "")
	viper.SetDefault("units.base_url", "")
	viper.SetDefault("units.token", "")
	viper.SetDefault("units.timeout", "5s")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.audit_dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "scribemarket")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("jwt.stream_expiry", "5m")

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set SCRIBE_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	rateLimitBurst := viper.GetInt("messaging.rate_limit_burst")
	if rateLimitBurst <= 0 {
		rateLimitBurst = 5
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Messaging: MessagingConfig{
			RateLimitWindow: durationOr("messaging.rate_limit_window", 10*time.Second),
			RateLimitBurst:  rateLimitBurst,
			MinViewDuration: durationOr("messaging.min_view_duration", 2*time.Second),
			MaxBodyBytes:    viper.GetInt64("messaging.max_body_bytes"),
		},
		Moderation: ModerationConfig{
			MaskToken: viper.GetString("moderation.mask_token"),
		},
		Preview: PreviewConfig{
			Timeout:     durationOr("preview.timeout", 3*time.Second),
			MaxAttempts: viper.GetInt("preview.max_attempts"),
			BaseBackoff: durationOr("preview.base_backoff", 500*time.Millisecond),
			Workers:     viper.GetInt("preview.workers"),
			QueueSize:   viper.GetInt("preview.queue_size"),
		},
		Attachment: AttachmentConfig{
			Dir:     viper.GetString("attachment.dir"),
			MaxSize: viper.GetInt64("attachment.max_size"),
		},
		Alerting: AlertingConfig{
			SMTPAddr:   viper.GetString("alerting.smtp_addr"),
			Username:   viper.GetString("alerting.username"),
			Password:   viper.GetString("alerting.password"),
			From:       viper.GetString("alerting.from"),
			Recipients: parseList(viper.GetString("alerting.recipients")),
		},
		Units: UnitsConfig{
			BaseURL: viper.GetString("units.base_url"),
			Token:   viper.GetString("units.token"),
			Timeout: durationOr("units.timeout", 5*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			AuditDSN:        viper.GetString("database.audit_dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: durationOr("database.conn_max_lifetime", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  durationOr("jwt.access_expiry", 15*time.Minute),
			RefreshExpiry: durationOr("jwt.refresh_expiry", 7*24*time.Hour),
			StreamExpiry:  durationOr("jwt.stream_expiry", 5*time.Minute),
		},
	}

	if cfg.Database.Type != "" && cfg.Database.Type != "postgres" && cfg.Database.Type != "mysql" {
		return nil, fmt.Errorf("unsupported database.type %q (want \"postgres\", \"mysql\" or empty)", cfg.Database.Type)
	}
	if cfg.Database.Type != "" && cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	return cfg, nil
}

// durationOr 解析时长配置，解析失败时回落到默认值
func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
