package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// Mailer 把严重告警投递到运维邮箱，实现 service.Mailer。
//
// 投递失败只向调用方返回错误，由调用方决定是否降级；
// 告警邮件本身绝不重试，避免在故障风暴里放大发信量。
type Mailer struct {
	addr     string // SMTP 服务器地址 host:port
	username string
	password string
	from     string
	to       []string
	log      *zap.Logger
}

// NewMailer 创建告警邮件投递器。
func NewMailer(addr, username, password, from string, to []string, log *zap.Logger) *Mailer {
	return &Mailer{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		to:       to,
		log:      log,
	}
}

// SendAlert 发送一封告警邮件。
func (m *Mailer) SendAlert(alert *domain.SystemAlert) error {
	if len(m.to) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", m.from)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(&body, "Subject: [%s] %s\r\n", strings.ToUpper(string(alert.Level)), alert.Title)
	fmt.Fprintf(&body, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "component: %s\n", alert.Component)
	fmt.Fprintf(&body, "level:     %s\n", alert.Level)
	fmt.Fprintf(&body, "time:      %s\n\n", alert.CreatedAt.Format(time.RFC3339))
	body.WriteString(alert.Message)
	body.WriteString("\n")

	var auth sasl.Client
	if m.username != "" {
		auth = sasl.NewPlainClient("", m.username, m.password)
	}

	err := gosmtp.SendMail(m.addr, auth, m.from, m.to, strings.NewReader(body.String()))
	if err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}

	m.log.Info("alert mail sent",
		zap.String("alertID", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.Int("recipients", len(m.to)),
	)
	return nil
}
