package domain

import "time"

// ReadReceipt 表示用户对单条消息的已读回执。
//
// (MessageID, UserID) 全局唯一，重复创建是幂等 no-op。
type ReadReceipt struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID string    `json:"messageId" gorm:"type:varchar(36);uniqueIndex:idx_receipt_message_user;not null"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);uniqueIndex:idx_receipt_message_user;not null"`
	ReadAt    time.Time `json:"readAt"`
}
