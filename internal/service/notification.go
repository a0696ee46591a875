package service

import (
	"time"

	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// NotificationService 提供用户通知的读取、标记与后台清理。
type NotificationService struct {
	store storage.Store
	log   *zap.Logger
}

// NewNotificationService 创建通知服务。
func NewNotificationService(store storage.Store, log *zap.Logger) *NotificationService {
	return &NotificationService{store: store, log: log}
}

// List 返回用户的通知，onlyUnread 为真时只返回未读。
func (s *NotificationService) List(user *domain.User, onlyUnread bool) ([]domain.Notification, error) {
	return s.store.ListNotificationsByRecipient(user.ID, onlyUnread)
}

// MarkRead 把通知标记为已读，只有收件人自己可以操作。
func (s *NotificationService) MarkRead(user *domain.User, notificationID string) error {
	return s.store.MarkNotificationRead(notificationID, user.ID)
}

// PurgeExpired 删除已过期的通知，由后台定时任务调用。
func (s *NotificationService) PurgeExpired() (int, error) {
	deleted, err := s.store.DeleteExpiredNotifications(time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("expired notifications purged", zap.Int("count", deleted))
	}
	return deleted, nil
}
