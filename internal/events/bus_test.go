package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

type recordingSubscriber struct {
	name   string
	events []*MessageSent
	panics bool
}

func (s *recordingSubscriber) Name() string { return s.name }

func (s *recordingSubscriber) OnMessageSent(event *MessageSent) {
	if s.panics {
		panic("subscriber exploded")
	}
	s.events = append(s.events, event)
}

func testEvent() *MessageSent {
	return &MessageSent{
		Thread:    &domain.Thread{ID: "t1"},
		Message:   &domain.Message{ID: "m1", ThreadID: "t1"},
		Sender:    &domain.User{ID: "u1"},
		Recipient: &domain.User{ID: "u2"},
	}
}

func TestBusPublish(t *testing.T) {
	t.Run("按注册顺序分发给全部订阅者", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		first := &recordingSubscriber{name: "first"}
		second := &recordingSubscriber{name: "second"}
		bus.Subscribe(first)
		bus.Subscribe(second)

		bus.PublishMessageSent(testEvent())

		assert.Len(t, first.events, 1)
		assert.Len(t, second.events, 1)
	})

	t.Run("订阅者panic不影响其他订阅者", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		bad := &recordingSubscriber{name: "bad", panics: true}
		good := &recordingSubscriber{name: "good"}
		bus.Subscribe(bad)
		bus.Subscribe(good)

		assert.NotPanics(t, func() {
			bus.PublishMessageSent(testEvent())
		})
		assert.Len(t, good.events, 1)
	})

	t.Run("没有订阅者时发布是no-op", func(t *testing.T) {
		bus := NewBus(zap.NewNop())
		assert.NotPanics(t, func() {
			bus.PublishMessageSent(testEvent())
		})
	})
}
