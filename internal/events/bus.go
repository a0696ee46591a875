package events

import (
	"sync"

	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// MessageSent 是消息落库后发布的事件。
type MessageSent struct {
	Thread     *domain.Thread
	Message    *domain.Message
	Sender     *domain.User
	Recipient  *domain.User
	FlagReason domain.FlagReason // 为空表示未被标记
}

// Subscriber 处理一个 MessageSent 事件。
//
// 订阅者彼此隔离：任何一个的失败或 panic 不影响其他订阅者，
// 更不会影响已完成的消息持久化。
type Subscriber interface {
	Name() string
	OnMessageSent(event *MessageSent)
}

// Bus 是进程内的同步事件总线。
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	log         *zap.Logger
}

// NewBus 创建事件总线。
func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe 注册订阅者。
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// PublishMessageSent 按注册顺序同步分发事件，逐个隔离失败。
func (b *Bus) PublishMessageSent(event *MessageSent) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub, event)
	}
}

func (b *Bus) dispatch(sub Subscriber, event *MessageSent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked",
				zap.String("subscriber", sub.Name()),
				zap.Any("panic", r),
				zap.String("messageID", event.Message.ID))
		}
	}()
	sub.OnMessageSent(event)
}
