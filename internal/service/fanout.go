package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/events"
	"scribemarket/backend/internal/linkpreview"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/storage"
)

const (
	// 标记类通知的保留时长
	flaggedNotificationTTL = 7 * 24 * time.Hour

	// 同一发送者在窗口内被标记达到该次数即产生运维告警
	repeatFlagWindow    = 24 * time.Hour
	repeatFlagThreshold = 3
)

// Pusher 把事件推给实时通道（WebSocket / SSE），尽力而为。
type Pusher interface {
	PushThread(threadID string, payload any)
	PushUser(userID string, payload any)
}

// Mailer 把严重告警送往运维邮箱。
type Mailer interface {
	SendAlert(alert *domain.SystemAlert) error
}

// FanoutSubscriber 消费 MessageSent 事件，负责站内通知、
// 标记记录入库、内部人员批量告警、实时推送与链接预览调度。
//
// 每个分支单独容错：任何一步失败只记日志，不影响其余分支。
type FanoutSubscriber struct {
	store   storage.Store
	fetcher *linkpreview.Fetcher
	pusher  Pusher
	mailer  Mailer
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewFanoutSubscriber 创建通知扇出订阅者。pusher、mailer、metrics 可为 nil。
func NewFanoutSubscriber(store storage.Store, fetcher *linkpreview.Fetcher, pusher Pusher, mailer Mailer, metrics *monitoring.Metrics, log *zap.Logger) *FanoutSubscriber {
	return &FanoutSubscriber{
		store:   store,
		fetcher: fetcher,
		pusher:  pusher,
		mailer:  mailer,
		metrics: metrics,
		log:     log,
	}
}

// Name 返回订阅者名。
func (f *FanoutSubscriber) Name() string { return "notification-fanout" }

// OnMessageSent 处理一条已落库的消息。
func (f *FanoutSubscriber) OnMessageSent(event *events.MessageSent) {
	f.notifyParties(event)

	if event.FlagReason != "" {
		f.recordFlag(event)
		f.notifyStaff(event)
		f.checkRepeatOffender(event)
	} else if event.Message.Type != domain.MessageTypeText && !event.Sender.Role.IsStaff() {
		// 非文本上传即使未被标记也提请管理员留意
		f.notifyStaff(event)
	}

	if event.Message.ContainsLink && f.fetcher != nil {
		f.fetcher.Schedule(event.Message.ID, event.Message.LinkURL)
	}

	if f.pusher != nil {
		f.pusher.PushThread(event.Thread.ID, event.Message)
		f.pusher.PushUser(event.Recipient.ID, event.Message)
		f.metrics.RecordMessageDelivered()
	}
}

// notifyParties 给收件人发通知，给发送者发镜像通知。
// 角色不在消息可见角色对内的一方跳过。
func (f *FanoutSubscriber) notifyParties(event *events.MessageSent) {
	msg := event.Message
	now := time.Now().UTC()
	var batch []*domain.Notification

	if msg.VisibleToRole(event.Recipient.Role) {
		batch = append(batch, &domain.Notification{
			ID:          uuid.NewString(),
			RecipientID: event.Recipient.ID,
			MessageID:   &msg.ID,
			Body:        fmt.Sprintf("New message from %s", displayLabel(event.Sender)),
			CreatedAt:   now,
		})
	}
	if msg.VisibleToRole(event.Sender.Role) {
		batch = append(batch, &domain.Notification{
			ID:          uuid.NewString(),
			RecipientID: event.Sender.ID,
			MessageID:   &msg.ID,
			Body:        fmt.Sprintf("Message sent to %s", displayLabel(event.Recipient)),
			CreatedAt:   now,
		})
	}

	if len(batch) == 0 {
		return
	}
	if err := f.store.SaveNotifications(batch); err != nil {
		f.log.Warn("party notification failed",
			zap.String("messageID", msg.ID), zap.Error(err))
		return
	}
	f.metrics.RecordNotifications(len(batch))
}

// recordFlag 为被标记的消息建立审查记录。
func (f *FanoutSubscriber) recordFlag(event *events.MessageSent) {
	now := time.Now().UTC()
	flag := &domain.FlaggedMessage{
		ID:        uuid.NewString(),
		MessageID: event.Message.ID,
		Reason:    event.FlagReason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.store.SaveFlag(flag); err != nil {
		f.log.Error("flag record failed",
			zap.String("messageID", event.Message.ID),
			zap.String("reason", string(event.FlagReason)),
			zap.Error(err))
	}
}

// notifyStaff 给租户内全部内部人员发带过期时间的批量通知。
func (f *FanoutSubscriber) notifyStaff(event *events.MessageSent) {
	staff, err := f.store.ListStaff(event.Thread.WebsiteID)
	if err != nil {
		f.log.Warn("staff lookup failed",
			zap.String("websiteID", event.Thread.WebsiteID), zap.Error(err))
		return
	}

	body := fmt.Sprintf("Message %s flagged (%s) in thread %s",
		event.Message.ID, event.FlagReason, event.Thread.ID)
	if event.FlagReason == "" {
		body = fmt.Sprintf("Non-text message %s (%s) in thread %s",
			event.Message.ID, event.Message.Type, event.Thread.ID)
	}

	now := time.Now().UTC()
	expires := now.Add(flaggedNotificationTTL)
	batch := make([]*domain.Notification, 0, len(staff))
	for _, member := range staff {
		if member.ID == event.Sender.ID {
			continue
		}
		batch = append(batch, &domain.Notification{
			ID:          uuid.NewString(),
			RecipientID: member.ID,
			MessageID:   &event.Message.ID,
			Body:        body,
			ExpiresAt:   &expires,
			CreatedAt:   now,
		})
	}
	if len(batch) == 0 {
		return
	}
	if err := f.store.SaveNotifications(batch); err != nil {
		f.log.Warn("staff notification failed",
			zap.String("messageID", event.Message.ID), zap.Error(err))
		return
	}
	f.metrics.RecordNotifications(len(batch))
}

// checkRepeatOffender 发送者短期内反复被标记时产生运维告警。
func (f *FanoutSubscriber) checkRepeatOffender(event *events.MessageSent) {
	since := time.Now().UTC().Add(-repeatFlagWindow)
	count, err := f.store.CountRecentFlagsBySender(event.Sender.ID, since)
	if err != nil {
		f.log.Warn("repeat offender count failed",
			zap.String("senderID", event.Sender.ID), zap.Error(err))
		return
	}
	if count < repeatFlagThreshold {
		return
	}

	alert := &domain.SystemAlert{
		ID:    uuid.NewString(),
		Title: "repeated flagged messages",
		Message: fmt.Sprintf("sender %s flagged %d times within %s",
			event.Sender.ID, count, repeatFlagWindow),
		Level:     domain.AlertLevelWarning,
		Component: "moderation",
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.SaveAlert(alert); err != nil {
		f.log.Error("alert persist failed", zap.Error(err))
		return
	}
	if f.mailer != nil {
		if err := f.mailer.SendAlert(alert); err != nil {
			f.log.Warn("alert mail failed", zap.Error(err))
		}
	}
}

// displayLabel 返回通知里展示的用户标签。
// 写手身份对外匿名化，只露出 ID 前缀。
func displayLabel(u *domain.User) string {
	if u.Role == domain.RoleWriter {
		id := u.ID
		if len(id) > 8 {
			id = id[:8]
		}
		return "Writer #" + id
	}
	return u.Username
}
