package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	svc := NewNotificationService(f.store, zap.NewNop())

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	require.NoError(t, f.store.SaveNotifications([]*domain.Notification{
		{ID: "n1", RecipientID: f.client.ID, Body: "New message from writer", CreatedAt: now},
		{ID: "n2", RecipientID: f.client.ID, Body: "Message flagged", ExpiresAt: &past, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "n3", RecipientID: f.writer.ID, Body: "New message from client", CreatedAt: now},
	}))

	t.Run("只看到自己的通知", func(t *testing.T) {
		notifs, err := svc.List(f.client, false)
		require.NoError(t, err)
		assert.Len(t, notifs, 2)
	})

	t.Run("标记已读后不出现在未读列表", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(f.client, "n1"))

		unread, err := svc.List(f.client, true)
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, "n2", unread[0].ID)
	})

	t.Run("不能标记别人的通知", func(t *testing.T) {
		err := svc.MarkRead(f.writer, "n2")
		assert.Error(t, err)
	})

	t.Run("清理过期通知", func(t *testing.T) {
		deleted, err := svc.PurgeExpired()
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		notifs, err := svc.List(f.client, false)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, "n1", notifs[0].ID)
	})
}
