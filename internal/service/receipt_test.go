package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

func TestMarkRead(t *testing.T) {
	t.Run("足够停留时长产生回执", func(t *testing.T) {
		f := newFixture(t)
		receipts := NewReceiptService(f.store, 0, zap.NewNop())
		msg, err := f.send(t, f.client, "please confirm")
		require.NoError(t, err)

		receipt, err := receipts.MarkRead(f.writer, msg.ID, 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, receipt.MessageID)
		assert.Equal(t, f.writer.ID, receipt.UserID)
	})

	t.Run("停留不足最短时长不计已读", func(t *testing.T) {
		f := newFixture(t)
		receipts := NewReceiptService(f.store, 0, zap.NewNop())
		msg, err := f.send(t, f.client, "please confirm")
		require.NoError(t, err)

		_, err = receipts.MarkRead(f.writer, msg.ID, 500*time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("重复标记幂等并返回首次回执", func(t *testing.T) {
		f := newFixture(t)
		receipts := NewReceiptService(f.store, 0, zap.NewNop())
		msg, err := f.send(t, f.client, "please confirm")
		require.NoError(t, err)

		first, err := receipts.MarkRead(f.writer, msg.ID, 3*time.Second)
		require.NoError(t, err)
		second, err := receipts.MarkRead(f.writer, msg.ID, 5*time.Second)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.ReadAt, second.ReadAt)

		all, err := f.store.ListReceiptsByMessage(msg.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("消息不存在返回NotFound", func(t *testing.T) {
		f := newFixture(t)
		receipts := NewReceiptService(f.store, 0, zap.NewNop())

		_, err := receipts.MarkRead(f.writer, "missing", 3*time.Second)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListReceipts(t *testing.T) {
	f := newFixture(t)
	receipts := NewReceiptService(f.store, 0, zap.NewNop())
	msg, err := f.send(t, f.client, "please confirm")
	require.NoError(t, err)
	_, err = receipts.MarkRead(f.writer, msg.ID, 3*time.Second)
	require.NoError(t, err)

	t.Run("内部人员可以查看回执", func(t *testing.T) {
		all, err := receipts.ListByMessage(f.admin, msg.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("普通用户不能查看回执", func(t *testing.T) {
		_, err := receipts.ListByMessage(f.client, msg.ID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})
}
