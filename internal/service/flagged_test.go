package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// flaggedFixture 在基础装配上挂好扇出订阅者，让标记记录真实产生。
func flaggedFixture(t *testing.T) (*fixture, *FlaggedService) {
	t.Helper()
	f := newFixture(t)
	f.bus.Subscribe(NewFanoutSubscriber(f.store, nil, nil, nil, nil, zap.NewNop()))
	return f, NewFlaggedService(f.store, nil, nil, zap.NewNop())
}

func TestFlaggedQueue(t *testing.T) {
	f, flagged := flaggedFixture(t)

	_, err := f.send(t, f.client, "reach me on wechat")
	require.NoError(t, err)
	_, err = f.send(t, f.client, "see https://example.com")
	require.NoError(t, err)

	t.Run("管理员看到队列与统计", func(t *testing.T) {
		entries, total, counts, err := flagged.Queue(f.admin, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, entries, 2)
		assert.Equal(t, 2, counts.Flagged)
		assert.Equal(t, 2, counts.Pending)
		assert.Equal(t, 0, counts.Reviewed)
		for _, e := range entries {
			assert.NotNil(t, e.Message)
		}
	})

	t.Run("非管理员被拒绝", func(t *testing.T) {
		_, _, _, err := flagged.Queue(f.client, 1, 20)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("标记原因按优先级归因", func(t *testing.T) {
		entries, _, _, err := flagged.Queue(f.admin, 1, 20)
		require.NoError(t, err)
		reasons := map[domain.FlagReason]bool{}
		for _, e := range entries {
			reasons[e.Flag.Reason] = true
		}
		assert.True(t, reasons[domain.FlagReasonBannedWord])
		assert.True(t, reasons[domain.FlagReasonLink])
	})
}

func TestUnblock(t *testing.T) {
	t.Run("解封恢复可见并记录审查人", func(t *testing.T) {
		f, flagged := flaggedFixture(t)
		msg, err := f.send(t, f.client, "contact wechat")
		require.NoError(t, err)

		flag, err := flagged.Unblock(f.admin, msg.ID, "false positive")
		require.NoError(t, err)
		assert.True(t, flag.IsUnblocked)
		assert.Equal(t, f.admin.ID, *flag.ReviewedBy)
		assert.NotNil(t, flag.ReviewedAt)
		assert.Equal(t, "false positive", flag.Comment)

		stored, err := f.store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsHidden)
	})

	t.Run("解封链接消息同时放行链接", func(t *testing.T) {
		f, flagged := flaggedFixture(t)
		msg, err := f.send(t, f.client, "https://example.com/doc")
		require.NoError(t, err)

		_, err = flagged.Unblock(f.admin, msg.ID, "")
		require.NoError(t, err)

		stored, err := f.store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsLinkApproved)
	})

	t.Run("未标记的消息解封返回NotFound", func(t *testing.T) {
		f, flagged := flaggedFixture(t)
		msg, err := f.send(t, f.client, "clean message")
		require.NoError(t, err)

		_, err = flagged.Unblock(f.admin, msg.ID, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReflag(t *testing.T) {
	t.Run("重新标记清空审查元数据", func(t *testing.T) {
		f, flagged := flaggedFixture(t)
		msg, err := f.send(t, f.client, "contact wechat")
		require.NoError(t, err)

		_, err = flagged.Unblock(f.admin, msg.ID, "looked fine")
		require.NoError(t, err)

		flag, err := flagged.Reflag(f.admin, msg.ID)
		require.NoError(t, err)
		assert.False(t, flag.IsUnblocked)
		assert.Nil(t, flag.ReviewedBy)
		assert.Nil(t, flag.ReviewedAt)
		assert.Empty(t, flag.Comment)

		stored, err := f.store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsHidden)
		assert.False(t, stored.IsLinkApproved)
	})

	t.Run("非管理员不能重新标记", func(t *testing.T) {
		f, flagged := flaggedFixture(t)
		msg, err := f.send(t, f.client, "contact wechat")
		require.NoError(t, err)

		_, err = flagged.Reflag(f.writer, msg.ID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})
}
