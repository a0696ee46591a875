package domain

import "time"

// BannedWord 表示一条违禁词记录。
//
// 列表由外部管理界面维护，消息核心启动时加载、收到管理端
// 信号后热更新，请求处理期间只读。
type BannedWord struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Word      string    `json:"word" gorm:"uniqueIndex;type:varchar(100);not null"`
	CreatedAt time.Time `json:"createdAt"`
}
