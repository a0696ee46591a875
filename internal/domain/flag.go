package domain

import "time"

// FlagReason 表示消息被标记的原因。
type FlagReason string

const (
	FlagReasonBannedWord    FlagReason = "banned_word"    // 命中违禁词/号码/邮箱
	FlagReasonLink          FlagReason = "link"           // 正文含链接
	FlagReasonSensitiveType FlagReason = "sensitive_type" // 文件/图片/链接类型
)

// FlaggedMessage 是被标记消息的审查记录，与消息一对一。
//
// IsUnblocked 可被管理员反复翻转：解封记录审查人与时间，
// 重新标记会清空这些字段（不保留历史）。
type FlaggedMessage struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID   string     `json:"messageId" gorm:"type:varchar(36);uniqueIndex;not null"`
	Reason      FlagReason `json:"reason" gorm:"type:varchar(20)"`
	ReviewedBy  *string    `json:"reviewedBy,omitempty" gorm:"type:varchar(36)"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	Comment     string     `json:"comment" gorm:"type:varchar(500)"`
	IsUnblocked bool       `json:"isUnblocked" gorm:"default:false;index"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FlagQueueCounts 是审查队列的统计摘要。
type FlagQueueCounts struct {
	Flagged  int `json:"flagged"`  // 全部被标记
	Reviewed int `json:"reviewed"` // 已审查（解封）
	Pending  int `json:"pending"`  // 待审查
}
