package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribemarket/backend/internal/access"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/events"
	"scribemarket/backend/internal/moderation"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/storage"
)

const (
	// 同一发送者在同一线程内的限流窗口与上限的缺省值
	defaultRateLimitWindow = 10 * time.Second
	defaultRateLimitBurst  = 5

	maxBodyLength = 10000
)

// MessageService 是消息发送的唯一入口，串起授权、校验、
// 清洗、标记、限流、持久化与事件发布。
type MessageService struct {
	store     storage.Store
	guard     *access.Guard
	sanitizer *moderation.Sanitizer
	bus       *events.Bus
	rateWin   time.Duration
	rateBurst int
	audit     domain.AuditSink
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewMessageService 创建消息业务服务。rateWindow/rateBurst
// 非正值时取缺省的 10 秒 5 条。audit 与 metrics 可为 nil。
func NewMessageService(store storage.Store, guard *access.Guard, sanitizer *moderation.Sanitizer, bus *events.Bus, rateWindow time.Duration, rateBurst int, audit domain.AuditSink, metrics *monitoring.Metrics, log *zap.Logger) *MessageService {
	if rateWindow <= 0 {
		rateWindow = defaultRateLimitWindow
	}
	if rateBurst <= 0 {
		rateBurst = defaultRateLimitBurst
	}
	return &MessageService{
		store:     store,
		guard:     guard,
		sanitizer: sanitizer,
		bus:       bus,
		rateWin:   rateWindow,
		rateBurst: rateBurst,
		audit:     audit,
		metrics:   metrics,
		log:       log,
	}
}

// SendInput 定义发送消息的输入。
type SendInput struct {
	ThreadID     string
	RecipientID  string
	Body         string
	Type         domain.MessageType
	AttachmentID *string
	ReplyToID    *string
}

// Send 在线程内发送一条消息。
//
// 流程顺序即语义顺序：授权失败、校验失败、限流超额都发生在
// 持久化之前，被拒绝的消息绝不落库；落库之后的所有副作用
// （通知、审计、预览抓取）经事件总线分发，互不拖累。
func (s *MessageService) Send(sender *domain.User, input SendInput) (*domain.Message, error) {
	thread, err := s.store.GetThread(input.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", input.ThreadID, domain.ErrNotFound)
	}

	decision, err := s.guard.AssertCanSend(sender, thread)
	if err != nil {
		s.metrics.RecordMessageRejected("access_denied")
		return nil, err
	}

	recipient, err := s.store.GetUserByID(input.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient %s: %w", input.RecipientID, domain.ErrNotFound)
	}

	body := strings.TrimSpace(input.Body)
	if body == "" && input.AttachmentID == nil {
		s.metrics.RecordMessageRejected("validation")
		return nil, fmt.Errorf("message body is empty: %w", domain.ErrValidation)
	}
	if len(body) > maxBodyLength {
		s.metrics.RecordMessageRejected("validation")
		return nil, fmt.Errorf("message body exceeds %d characters: %w", maxBodyLength, domain.ErrValidation)
	}
	msgType := input.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !domain.ValidMessageType(msgType) {
		s.metrics.RecordMessageRejected("validation")
		return nil, fmt.Errorf("invalid message type %q: %w", msgType, domain.ErrValidation)
	}

	if input.ReplyToID != nil {
		parent, err := s.store.GetMessage(*input.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("reply target %s: %w", *input.ReplyToID, domain.ErrNotFound)
		}
		if parent.ThreadID != thread.ID {
			return nil, fmt.Errorf("reply target belongs to another thread: %w", domain.ErrValidation)
		}
		if !s.guard.CanReply(sender, thread) {
			return nil, fmt.Errorf("cannot reply in thread %s: %w", thread.ID, domain.ErrAccessDenied)
		}
	}

	// 限流在持久化之前：原子自增，第 6 条直接拒绝
	rateKey := fmt.Sprintf("msgrate:%s:%s", thread.ID, sender.ID)
	count, err := s.store.IncrementRateLimit(rateKey, s.rateWin)
	if err != nil {
		s.log.Warn("rate limit backend unavailable, allowing send",
			zap.String("key", rateKey), zap.Error(err))
	} else if count > int64(s.rateBurst) {
		s.metrics.RecordRateLimitBlock("message")
		return nil, fmt.Errorf("too many messages in thread %s: %w", thread.ID, domain.ErrRateLimited)
	}

	// 先提链接再清洗，避免掩码破坏 URL 中的数字
	linkURL := moderation.ExtractFirstLink(body)
	sanitized, contentFlagged := s.sanitizer.Sanitize(body)

	containsLink := linkURL != ""
	if containsLink {
		msgType = domain.MessageTypeLink
	}
	sensitiveType := msgType == domain.MessageTypeFile ||
		msgType == domain.MessageTypeImage ||
		msgType == domain.MessageTypeLink
	flagged := contentFlagged || containsLink || sensitiveType

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ThreadID:       thread.ID,
		SenderID:       sender.ID,
		RecipientID:    recipient.ID,
		SenderRole:     sender.Role,
		RecipientRole:  recipient.Role,
		Body:           sanitized,
		Type:           msgType,
		AttachmentID:   input.AttachmentID,
		IsFlagged:      flagged,
		IsHidden:       flagged,
		ContainsLink:   containsLink,
		LinkURL:        linkURL,
		LinkDomain:     moderation.LinkDomain(linkURL),
		VisibleToRoles: domain.RolePair(sender.Role, recipient.Role),
		ReplyToID:      input.ReplyToID,
		SentAt:         now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if containsLink {
		msg.PreviewState = domain.PreviewStatePending
	}

	if err := s.store.SaveMessage(msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if decision.Enroll {
		if err := s.store.AddParticipant(thread.ID, sender.ID); err != nil {
			s.log.Warn("lazy enrollment failed",
				zap.String("threadID", thread.ID),
				zap.String("userID", sender.ID),
				zap.Error(err))
		}
	}
	s.refreshThreadRoles(thread, sender.Role, recipient.Role)

	s.metrics.RecordMessageSent()
	if flagged {
		s.metrics.RecordMessageFlagged(string(flagReason(contentFlagged, containsLink, sensitiveType)))
	}

	s.bus.PublishMessageSent(&events.MessageSent{
		Thread:     thread,
		Message:    msg,
		Sender:     sender,
		Recipient:  recipient,
		FlagReason: flagReason(contentFlagged, containsLink, sensitiveType),
	})
	return msg, nil
}

// flagReason 按优先级归因：违禁内容 > 链接 > 敏感类型。
func flagReason(contentFlagged, containsLink, sensitiveType bool) domain.FlagReason {
	switch {
	case contentFlagged:
		return domain.FlagReasonBannedWord
	case containsLink:
		return domain.FlagReasonLink
	case sensitiveType:
		return domain.FlagReasonSensitiveType
	default:
		return ""
	}
}

// refreshThreadRoles 刷新线程上缓存的角色方向快照，尽力而为。
func (s *MessageService) refreshThreadRoles(thread *domain.Thread, senderRole, recipientRole domain.Role) {
	if thread.SenderRole == senderRole && thread.RecipientRole == recipientRole {
		return
	}
	thread.SenderRole = senderRole
	thread.RecipientRole = recipientRole
	thread.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateThread(thread); err != nil {
		s.log.Warn("thread role refresh failed",
			zap.String("threadID", thread.ID), zap.Error(err))
	}
}

// Edit 管理员更正消息正文。原文不保留在消息上，留痕在审计记录里。
func (s *MessageService) Edit(actor *domain.User, messageID, newBody string) (*domain.Message, error) {
	if !actor.Role.IsAdminTier() {
		return nil, fmt.Errorf("only admins may edit messages: %w", domain.ErrAccessDenied)
	}
	msg, err := s.store.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	newBody = strings.TrimSpace(newBody)
	if newBody == "" {
		return nil, fmt.Errorf("message body is empty: %w", domain.ErrValidation)
	}
	priorBody := msg.Body
	sanitized, _ := s.sanitizer.Sanitize(newBody)
	msg.Body = sanitized
	msg.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateMessage(msg); err != nil {
		return nil, err
	}
	s.writeAudit(actor, domain.AuditMessageEdited, msg.ID, map[string]string{
		"messageId": msg.ID,
		"priorBody": priorBody,
	})
	return msg, nil
}

// Delete 软删除消息，仅限内部人员。
func (s *MessageService) Delete(actor *domain.User, messageID string) error {
	if !actor.Role.IsStaff() {
		return fmt.Errorf("only staff may delete messages: %w", domain.ErrAccessDenied)
	}
	msg, err := s.store.GetMessage(messageID)
	if err != nil {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	if err := s.store.SoftDeleteMessage(messageID); err != nil {
		return err
	}
	s.writeAudit(actor, domain.AuditMessageDeleted, messageID, map[string]string{
		"messageId": messageID,
		"priorBody": msg.Body,
	})
	return nil
}

// writeAudit 记录管理操作，写入失败只告警不回传。
func (s *MessageService) writeAudit(actor *domain.User, action domain.AuditAction, messageID string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Write(domain.AuditEntry{
		ActorID:     actor.ID,
		WebsiteID:   actor.WebsiteID,
		Action:      action,
		Description: fmt.Sprintf("%s on message %s", action, messageID),
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("audit write failed", zap.String("action", string(action)), zap.Error(err))
	}
}
