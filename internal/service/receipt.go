package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// DefaultMinViewDuration 是计为"已读"所需的最短停留时长。
const DefaultMinViewDuration = 2 * time.Second

// ReceiptService 处理消息已读回执。
type ReceiptService struct {
	store   storage.Store
	minView time.Duration
	log     *zap.Logger
}

// NewReceiptService 创建回执服务。minView <= 0 时取默认值。
func NewReceiptService(store storage.Store, minView time.Duration, log *zap.Logger) *ReceiptService {
	if minView <= 0 {
		minView = DefaultMinViewDuration
	}
	return &ReceiptService{store: store, minView: minView, log: log}
}

// MarkRead 记录用户对消息的已读回执。
//
// 停留不足最短时长的浏览不计为已读；重复标记是幂等 no-op，
// 返回首次回执。
func (s *ReceiptService) MarkRead(user *domain.User, messageID string, viewedFor time.Duration) (*domain.ReadReceipt, error) {
	if viewedFor < s.minView {
		return nil, fmt.Errorf("viewed for %s, need %s: %w", viewedFor, s.minView, domain.ErrValidation)
	}
	if _, err := s.store.GetMessage(messageID); err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}

	receipt := &domain.ReadReceipt{
		ID:        uuid.NewString(),
		MessageID: messageID,
		UserID:    user.ID,
		ReadAt:    time.Now().UTC(),
	}
	err := s.store.SaveReceipt(receipt)
	if errors.Is(err, storage.ErrReceiptExists) {
		return s.store.GetReceipt(messageID, user.ID)
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListByMessage 列出消息的全部回执，仅限内部人员。
func (s *ReceiptService) ListByMessage(user *domain.User, messageID string) ([]domain.ReadReceipt, error) {
	if !user.Role.IsStaff() {
		return nil, fmt.Errorf("only staff may list receipts: %w", domain.ErrAccessDenied)
	}
	return s.store.ListReceiptsByMessage(messageID)
}
