package domain

import "time"

// Notification 表示发给单个用户的站内通知。
//
// MessageID 对非消息类通知为空；被标记内容产生的通知带过期时间，
// 到期后由后台任务清理。
type Notification struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RecipientID string     `json:"recipientId" gorm:"type:varchar(36);index;not null"`
	MessageID   *string    `json:"messageId,omitempty" gorm:"type:varchar(36);index"`
	Body        string     `json:"body" gorm:"type:varchar(1000)"`
	IsRead      bool       `json:"isRead" gorm:"default:false;index"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" gorm:"index"`
	CreatedAt   time.Time  `json:"createdAt"`
}
