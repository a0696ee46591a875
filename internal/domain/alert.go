package domain

import "time"

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// SystemAlert 表示与租户无关的运维告警（如审计日志被异常访问、
// 同一发送者短时间内被反复标记）。不参与消息可见性图。
type SystemAlert struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title      string     `json:"title" gorm:"type:varchar(200)"`
	Message    string     `json:"message" gorm:"type:varchar(2000)"`
	Level      AlertLevel `json:"level" gorm:"type:varchar(10);index"`
	Component  string     `json:"component" gorm:"type:varchar(50)"`
	Resolved   bool       `json:"resolved" gorm:"default:false;index"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
