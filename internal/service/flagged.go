package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/storage"
)

// FlaggedService 是管理员的消息审查队列。
type FlaggedService struct {
	store   storage.Store
	audit   domain.AuditSink
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewFlaggedService 创建审查队列服务。metrics 可为 nil。
func NewFlaggedService(store storage.Store, audit domain.AuditSink, metrics *monitoring.Metrics, log *zap.Logger) *FlaggedService {
	return &FlaggedService{store: store, audit: audit, metrics: metrics, log: log}
}

// FlaggedEntry 是队列视图里的一行：审查记录加消息本体。
type FlaggedEntry struct {
	Flag    domain.FlaggedMessage `json:"flag"`
	Message *domain.Message       `json:"message,omitempty"`
}

// Queue 分页返回审查队列与队列统计。
func (s *FlaggedService) Queue(user *domain.User, page, pageSize int) ([]FlaggedEntry, int, *domain.FlagQueueCounts, error) {
	if !user.Role.IsAdminTier() {
		return nil, 0, nil, fmt.Errorf("only admins may review flags: %w", domain.ErrAccessDenied)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	flags, total, err := s.store.ListFlagged(page, pageSize)
	if err != nil {
		return nil, 0, nil, err
	}
	counts, err := s.store.CountFlags()
	if err != nil {
		return nil, 0, nil, err
	}
	s.metrics.SetFlagQueuePending(counts.Pending)

	entries := make([]FlaggedEntry, 0, len(flags))
	for _, flag := range flags {
		entry := FlaggedEntry{Flag: flag}
		if msg, err := s.store.GetMessage(flag.MessageID); err == nil {
			entry.Message = msg
		}
		entries = append(entries, entry)
	}
	return entries, total, counts, nil
}

// Unblock 解封一条被标记的消息：记录审查人与时间，去掉隐藏位。
//
// 审查元数据直接覆盖，不保留历次审查的历史。
func (s *FlaggedService) Unblock(reviewer *domain.User, messageID, comment string) (*domain.FlaggedMessage, error) {
	if !reviewer.Role.IsAdminTier() {
		return nil, fmt.Errorf("only admins may unblock: %w", domain.ErrAccessDenied)
	}
	flag, err := s.store.GetFlagByMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("flag for message %s: %w", messageID, domain.ErrNotFound)
	}

	now := time.Now().UTC()
	flag.IsUnblocked = true
	flag.ReviewedBy = &reviewer.ID
	flag.ReviewedAt = &now
	flag.Comment = comment
	flag.UpdatedAt = now
	if err := s.store.UpdateFlag(flag); err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	msg.IsHidden = false
	if msg.ContainsLink {
		msg.IsLinkApproved = true
	}
	msg.UpdatedAt = now
	if err := s.store.UpdateMessage(msg); err != nil {
		return nil, err
	}

	s.metrics.RecordFlagUnblocked()
	s.writeAudit(reviewer, domain.AuditMessageUnblocked, messageID, comment)
	return flag, nil
}

// Reflag 把已解封的消息重新打回隐藏，清空审查元数据。
func (s *FlaggedService) Reflag(reviewer *domain.User, messageID string) (*domain.FlaggedMessage, error) {
	if !reviewer.Role.IsAdminTier() {
		return nil, fmt.Errorf("only admins may reflag: %w", domain.ErrAccessDenied)
	}
	flag, err := s.store.GetFlagByMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("flag for message %s: %w", messageID, domain.ErrNotFound)
	}

	flag.IsUnblocked = false
	flag.ReviewedBy = nil
	flag.ReviewedAt = nil
	flag.Comment = ""
	flag.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFlag(flag); err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	msg.IsHidden = true
	msg.IsLinkApproved = false
	msg.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateMessage(msg); err != nil {
		return nil, err
	}

	s.metrics.RecordFlagReflagged()
	s.writeAudit(reviewer, domain.AuditMessageReflagged, messageID, "")
	return flag, nil
}

func (s *FlaggedService) writeAudit(actor *domain.User, action domain.AuditAction, messageID, comment string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Write(domain.AuditEntry{
		ActorID:     actor.ID,
		WebsiteID:   actor.WebsiteID,
		Action:      action,
		Description: fmt.Sprintf("%s on message %s", action, messageID),
		Metadata:    map[string]string{"messageId": messageID, "comment": comment},
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("audit write failed", zap.String("action", string(action)), zap.Error(err))
	}
}
