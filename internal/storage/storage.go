package storage

import (
	"errors"
	"time"

	"scribemarket/backend/internal/domain"
)

var (
	// ErrThreadNotFound 线程未找到错误
	ErrThreadNotFound = errors.New("thread not found")
	// ErrMessageNotFound 消息未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrFlagNotFound 标记记录未找到错误
	ErrFlagNotFound = errors.New("flagged message not found")
	// ErrNotificationNotFound 通知未找到错误
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrAlertNotFound 告警未找到错误
	ErrAlertNotFound = errors.New("alert not found")
	// ErrReceiptExists 已读回执重复创建错误
	ErrReceiptExists = errors.New("read receipt already exists")
	// ErrUserExists 用户名已存在错误
	ErrUserExists = errors.New("username already exists")
)

// ThreadRepository 定义线程数据存取操作。
type ThreadRepository interface {
	SaveThread(thread *domain.Thread) error
	GetThread(id string) (*domain.Thread, error)
	UpdateThread(thread *domain.Thread) error
	DeleteThread(id string) error // 级联删除消息
	ListThreadsByParticipant(userID string) ([]domain.Thread, error)
	ListThreadsByWebsite(websiteID string) ([]domain.Thread, error)
	FindThreadByUnit(kind domain.UnitKind, unitID string) (*domain.Thread, error)
	AddParticipant(threadID, userID string) error
}

// MessageRepository 定义消息数据存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	GetMessage(id string) (*domain.Message, error)
	UpdateMessage(message *domain.Message) error
	SoftDeleteMessage(id string) error
	ListMessages(threadID string) ([]domain.Message, error) // 按 SentAt 升序
	ListPendingPreviews(before time.Time) ([]domain.Message, error)
}

// ReceiptRepository 定义已读回执存取操作。
type ReceiptRepository interface {
	SaveReceipt(receipt *domain.ReadReceipt) error // 重复返回 ErrReceiptExists
	GetReceipt(messageID, userID string) (*domain.ReadReceipt, error)
	ListReceiptsByMessage(messageID string) ([]domain.ReadReceipt, error)
}

// FlagRepository 定义标记消息审查记录的存取操作。
type FlagRepository interface {
	SaveFlag(flag *domain.FlaggedMessage) error
	GetFlagByMessage(messageID string) (*domain.FlaggedMessage, error)
	UpdateFlag(flag *domain.FlaggedMessage) error
	ListFlagged(page, pageSize int) ([]domain.FlaggedMessage, int, error)
	CountFlags() (*domain.FlagQueueCounts, error)
	CountRecentFlagsBySender(senderID string, since time.Time) (int64, error)
}

// NotificationRepository 定义通知存取操作。
type NotificationRepository interface {
	SaveNotifications(notifications []*domain.Notification) error
	ListNotificationsByRecipient(userID string, onlyUnread bool) ([]domain.Notification, error)
	MarkNotificationRead(id, userID string) error
	DeleteExpiredNotifications(before time.Time) (int, error)
}

// AlertRepository 定义运维告警存取操作。
type AlertRepository interface {
	SaveAlert(alert *domain.SystemAlert) error
	ListOpenAlerts() ([]domain.SystemAlert, error)
	ResolveAlert(id string) error
}

// BanListRepository 定义违禁词存取操作。
type BanListRepository interface {
	ListBannedWords() ([]string, error)
	SaveBannedWord(word *domain.BannedWord) error
	DeleteBannedWord(word string) error
}

// UserRepository 定义用户数据存取操作（认证与用户目录的后端）。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	ListStaff(websiteID string) ([]domain.User, error)
	UpdateLastLogin(userID string) error
}

// RateLimitRepository 定义限流操作。
//
// 返回窗口内自增后的计数。实现必须保证自增与过期设置的原子性，
// 使 "先检查后写入" 的竞态不会放行超额消息。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	ThreadRepository
	MessageRepository
	ReceiptRepository
	FlagRepository
	NotificationRepository
	AlertRepository
	BanListRepository
	UserRepository
	RateLimitRepository

	// 工具方法
	Close() error
	Health() error
}
