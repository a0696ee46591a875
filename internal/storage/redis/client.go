package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scribemarket/backend/internal/config"
)

// Client 封装 Redis 客户端
type Client struct {
	rdb *goredis.Client
	log *zap.Logger
}

// New 创建新的 Redis 客户端
func New(cfg *config.RedisConfig, log *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		rdb: rdb,
		log: log,
	}, nil
}

// Client 返回底层的 Redis 客户端
func (c *Client) Client() *goredis.Client {
	return c.rdb
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	err := c.rdb.Close()
	if err != nil {
		c.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	c.log.Info("Redis connection closed")
	return nil
}

// Ping 测试 Redis 连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish 向频道发布消息
func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe 订阅频道
func (c *Client) Subscribe(ctx context.Context, channel string) *goredis.PubSub {
	return c.rdb.Subscribe(ctx, channel)
}
