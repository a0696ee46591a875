package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/events"
)

// AuditSubscriber 把每次消息发送追加进审计日志。
type AuditSubscriber struct {
	sink domain.AuditSink
	log  *zap.Logger
}

// NewAuditSubscriber 创建审计订阅者。
func NewAuditSubscriber(sink domain.AuditSink, log *zap.Logger) *AuditSubscriber {
	return &AuditSubscriber{sink: sink, log: log}
}

// Name 返回订阅者名。
func (a *AuditSubscriber) Name() string { return "audit-trail" }

// OnMessageSent 写一条 message_sent 审计记录。
func (a *AuditSubscriber) OnMessageSent(event *events.MessageSent) {
	entry := domain.AuditEntry{
		ActorID:   event.Sender.ID,
		WebsiteID: event.Thread.WebsiteID,
		Action:    domain.AuditMessageSent,
		Description: fmt.Sprintf("message %s sent in thread %s",
			event.Message.ID, event.Thread.ID),
		Metadata: map[string]string{
			"messageId": event.Message.ID,
			"threadId":  event.Thread.ID,
			"type":      string(event.Message.Type),
		},
		CreatedAt: time.Now().UTC(),
	}
	if event.FlagReason != "" {
		entry.Metadata["flagReason"] = string(event.FlagReason)
	}
	if err := a.sink.Write(entry); err != nil {
		a.log.Warn("audit write failed",
			zap.String("messageID", event.Message.ID), zap.Error(err))
	}
}

// ActivitySubscriber 把消息发送写进用户动态流。
// 被隐藏的消息不产生动态，避免把未过审内容曝光到动态页。
type ActivitySubscriber struct {
	sink domain.ActivitySink
	log  *zap.Logger
}

// NewActivitySubscriber 创建动态流订阅者。
func NewActivitySubscriber(sink domain.ActivitySink, log *zap.Logger) *ActivitySubscriber {
	return &ActivitySubscriber{sink: sink, log: log}
}

// Name 返回订阅者名。
func (a *ActivitySubscriber) Name() string { return "activity-feed" }

// OnMessageSent 尽力而为地记录一条动态。
func (a *ActivitySubscriber) OnMessageSent(event *events.MessageSent) {
	if event.Message.IsHidden {
		return
	}
	desc := fmt.Sprintf("sent a message in thread %s", event.Thread.ID)
	if err := a.sink.Record(event.Sender.ID, event.Thread.WebsiteID, desc); err != nil {
		a.log.Debug("activity record failed",
			zap.String("messageID", event.Message.ID), zap.Error(err))
	}
}
