package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

type capturePusher struct {
	threadPushes []string
	userPushes   []string
}

func (p *capturePusher) PushThread(threadID string, payload any) {
	p.threadPushes = append(p.threadPushes, threadID)
}

func (p *capturePusher) PushUser(userID string, payload any) {
	p.userPushes = append(p.userPushes, userID)
}

type captureMailer struct {
	alerts []*domain.SystemAlert
}

func (m *captureMailer) SendAlert(alert *domain.SystemAlert) error {
	m.alerts = append(m.alerts, alert)
	return nil
}

func TestFanout(t *testing.T) {
	t.Run("双方各收到一条通知", func(t *testing.T) {
		f := newFixture(t)
		f.bus.Subscribe(NewFanoutSubscriber(f.store, nil, nil, nil, nil, zap.NewNop()))

		_, err := f.send(t, f.client, "hello writer")
		require.NoError(t, err)

		toWriter, err := f.store.ListNotificationsByRecipient(f.writer.ID, false)
		require.NoError(t, err)
		require.Len(t, toWriter, 1)
		assert.Contains(t, toWriter[0].Body, "New message from")

		toClient, err := f.store.ListNotificationsByRecipient(f.client.ID, false)
		require.NoError(t, err)
		require.Len(t, toClient, 1)
		assert.Contains(t, toClient[0].Body, "Message sent to")
	})

	t.Run("写手在通知里匿名化", func(t *testing.T) {
		f := newFixture(t)
		f.bus.Subscribe(NewFanoutSubscriber(f.store, nil, nil, nil, nil, zap.NewNop()))

		_, err := f.send(t, f.writer, "draft attached below")
		require.NoError(t, err)

		toClient, err := f.store.ListNotificationsByRecipient(f.client.ID, false)
		require.NoError(t, err)
		require.Len(t, toClient, 1)
		assert.Contains(t, toClient[0].Body, "Writer #")
		assert.NotContains(t, toClient[0].Body, f.writer.Username)
		// 只露出 ID 前缀
		assert.NotContains(t, toClient[0].Body, f.writer.ID)
	})

	t.Run("被标记的消息通知租户内部人员并带过期时间", func(t *testing.T) {
		f := newFixture(t)
		f.bus.Subscribe(NewFanoutSubscriber(f.store, nil, nil, nil, nil, zap.NewNop()))

		_, err := f.send(t, f.client, "find me on wechat")
		require.NoError(t, err)

		toAdmin, err := f.store.ListNotificationsByRecipient(f.admin.ID, false)
		require.NoError(t, err)
		require.Len(t, toAdmin, 1)
		assert.Contains(t, toAdmin[0].Body, "flagged")
		assert.Contains(t, toAdmin[0].Body, string(domain.FlagReasonBannedWord))
		assert.NotNil(t, toAdmin[0].ExpiresAt)
	})

	t.Run("实时推送按线程和收件人分发", func(t *testing.T) {
		f := newFixture(t)
		pusher := &capturePusher{}
		f.bus.Subscribe(NewFanoutSubscriber(f.store, nil, pusher, nil, nil, zap.NewNop()))

		_, err := f.send(t, f.client, "ping")
		require.NoError(t, err)

		assert.Equal(t, []string{f.thread.ID}, pusher.threadPushes)
		assert.Equal(t, []string{f.writer.ID}, pusher.userPushes)
	})

	t.Run("短期内反复被标记触发运维告警与邮件", func(t *testing.T) {
		f := newFixture(t)
		mailer := &captureMailer{}
		f.bus.Subscribe(NewFanoutSubscriber(f.store, nil, nil, mailer, nil, zap.NewNop()))

		for _, body := range []string{"wechat one", "wechat two", "wechat three"} {
			_, err := f.send(t, f.client, body)
			require.NoError(t, err)
		}

		alerts, err := f.store.ListOpenAlerts()
		require.NoError(t, err)
		require.NotEmpty(t, alerts)
		assert.Equal(t, domain.AlertLevelWarning, alerts[0].Level)
		assert.True(t, strings.Contains(alerts[0].Message, f.client.ID))
		assert.NotEmpty(t, mailer.alerts)
	})
}
