package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribemarket/backend/internal/domain"
)

func TestSend(t *testing.T) {
	t.Run("干净文本发送成功且未标记", func(t *testing.T) {
		f := newFixture(t)

		msg, err := f.send(t, f.client, "the outline looks good")

		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeText, msg.Type)
		assert.False(t, msg.IsFlagged)
		assert.False(t, msg.IsHidden)
		assert.Equal(t, domain.RolePair(domain.RoleClient, domain.RoleWriter), msg.VisibleToRoles)
	})

	t.Run("违禁词被遮蔽并立即隐藏", func(t *testing.T) {
		f := newFixture(t)

		msg, err := f.send(t, f.client, "add me on wechat")

		require.NoError(t, err)
		assert.True(t, msg.IsFlagged)
		assert.True(t, msg.IsHidden)
		assert.NotContains(t, msg.Body, "wechat")
		assert.Contains(t, msg.Body, "****")
	})

	t.Run("标记与隐藏始终同步", func(t *testing.T) {
		f := newFixture(t)

		for _, body := range []string{"hello there", "call 555-123-4567", "https://example.com", "wechat me"} {
			msg, err := f.send(t, f.client, body)
			require.NoError(t, err)
			assert.Equal(t, msg.IsFlagged, msg.IsHidden, "body=%q", body)
		}
	})

	t.Run("电话号码在落库前被遮蔽", func(t *testing.T) {
		f := newFixture(t)

		msg, err := f.send(t, f.client, "call me at 555-123-4567")

		require.NoError(t, err)
		stored, err := f.store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.NotContains(t, stored.Body, "555-123-4567")
		assert.True(t, stored.IsFlagged)
	})

	t.Run("含链接的消息类型强制为link并待抓预览", func(t *testing.T) {
		f := newFixture(t)

		msg, err := f.send(t, f.client, "see https://example.com/brief")

		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeLink, msg.Type)
		assert.True(t, msg.ContainsLink)
		assert.Equal(t, "https://example.com/brief", msg.LinkURL)
		assert.Equal(t, "example.com", msg.LinkDomain)
		assert.Equal(t, domain.PreviewStatePending, msg.PreviewState)
		assert.True(t, msg.IsHidden)
		assert.False(t, msg.IsLinkApproved)
	})

	t.Run("窗口内第6条被限流拒绝", func(t *testing.T) {
		f := newFixture(t)

		for i := 0; i < 5; i++ {
			_, err := f.send(t, f.client, "message body")
			require.NoError(t, err)
		}

		_, err := f.send(t, f.client, "one too many")
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("限流按发送者隔离", func(t *testing.T) {
		f := newFixture(t)

		for i := 0; i < 5; i++ {
			_, err := f.send(t, f.client, "message body")
			require.NoError(t, err)
		}

		_, err := f.send(t, f.writer, "writer is unaffected")
		assert.NoError(t, err)
	})

	t.Run("被限流的消息不落库", func(t *testing.T) {
		f := newFixture(t)

		for i := 0; i < 6; i++ {
			f.send(t, f.client, "message body")
		}

		msgs, err := f.store.ListMessages(f.thread.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 5)
	})

	t.Run("空正文且无附件被拒绝", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.send(t, f.client, "   ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("仅附件无正文允许发送", func(t *testing.T) {
		f := newFixture(t)

		msg, err := f.messages.Send(f.client, SendInput{
			ThreadID:     f.thread.ID,
			RecipientID:  f.writer.ID,
			Type:         domain.MessageTypeFile,
			AttachmentID: strptr("att-1"),
		})

		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeFile, msg.Type)
		// 敏感类型即使内容干净也进入待审队列
		assert.True(t, msg.IsFlagged)
	})

	t.Run("超长正文被拒绝", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.send(t, f.client, strings.Repeat("a", 10001))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("非法消息类型被拒绝", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.messages.Send(f.client, SendInput{
			ThreadID: f.thread.ID, RecipientID: f.writer.ID,
			Body: "hi", Type: "carrier_pigeon",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("跨线程回复被拒绝", func(t *testing.T) {
		f := newFixture(t)

		other := &domain.Thread{
			ID: "other-thread", WebsiteID: "site-1", Type: domain.ThreadTypeGeneral,
			IsActive: true, Participants: []domain.User{*f.client, *f.writer},
		}
		require.NoError(t, f.store.SaveThread(other))
		parent, err := f.messages.Send(f.client, SendInput{
			ThreadID: other.ID, RecipientID: f.writer.ID, Body: "parent",
		})
		require.NoError(t, err)

		_, err = f.messages.Send(f.writer, SendInput{
			ThreadID: f.thread.ID, RecipientID: f.client.ID,
			Body: "reply", ReplyToID: &parent.ID,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("同线程回复成功", func(t *testing.T) {
		f := newFixture(t)

		parent, err := f.send(t, f.client, "parent message")
		require.NoError(t, err)

		reply, err := f.messages.Send(f.writer, SendInput{
			ThreadID: f.thread.ID, RecipientID: f.client.ID,
			Body: "got it", ReplyToID: &parent.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, parent.ID, *reply.ReplyToID)
	})

	t.Run("发送失败不产生消息", func(t *testing.T) {
		f := newFixture(t)
		outsider := f.addUser("stranger", domain.RoleClient)

		_, err := f.send(t, outsider, "let me in")
		assert.ErrorIs(t, err, domain.ErrAccessDenied)

		msgs, _ := f.store.ListMessages(f.thread.ID)
		assert.Empty(t, msgs)
	})
}

func TestEdit(t *testing.T) {
	t.Run("管理员可更正正文", func(t *testing.T) {
		f := newFixture(t)
		msg, err := f.send(t, f.client, "original body")
		require.NoError(t, err)

		edited, err := f.messages.Edit(f.admin, msg.ID, "corrected body")
		require.NoError(t, err)
		assert.Equal(t, "corrected body", edited.Body)
	})

	t.Run("更正写入审计并保留原文", func(t *testing.T) {
		f := newFixture(t)
		msg, err := f.send(t, f.client, "original body")
		require.NoError(t, err)

		_, err = f.messages.Edit(f.admin, msg.ID, "corrected body")
		require.NoError(t, err)

		require.NotEmpty(t, f.audit.entries)
		entry := f.audit.entries[len(f.audit.entries)-1]
		assert.Equal(t, domain.AuditMessageEdited, entry.Action)
		assert.Equal(t, f.admin.ID, entry.ActorID)
		assert.Equal(t, msg.ID, entry.Metadata["messageId"])
		assert.Equal(t, "original body", entry.Metadata["priorBody"])
	})

	t.Run("更正后的正文同样要过消毒", func(t *testing.T) {
		f := newFixture(t)
		msg, err := f.send(t, f.client, "original body")
		require.NoError(t, err)

		edited, err := f.messages.Edit(f.admin, msg.ID, "contact me on wechat")
		require.NoError(t, err)
		assert.NotContains(t, edited.Body, "wechat")
	})

	t.Run("非管理员不能更正", func(t *testing.T) {
		f := newFixture(t)
		msg, err := f.send(t, f.client, "original body")
		require.NoError(t, err)

		_, err = f.messages.Edit(f.client, msg.ID, "sneaky edit")
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})
}

func TestDelete(t *testing.T) {
	t.Run("内部人员软删除", func(t *testing.T) {
		f := newFixture(t)
		msg, err := f.send(t, f.client, "to be removed")
		require.NoError(t, err)

		require.NoError(t, f.messages.Delete(f.admin, msg.ID))

		stored, err := f.store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsDeleted)

		entry := f.audit.entries[len(f.audit.entries)-1]
		assert.Equal(t, domain.AuditMessageDeleted, entry.Action)
		assert.Equal(t, msg.ID, entry.Metadata["messageId"])
	})

	t.Run("普通用户不能删除", func(t *testing.T) {
		f := newFixture(t)
		msg, err := f.send(t, f.client, "mine")
		require.NoError(t, err)

		err = f.messages.Delete(f.client, msg.ID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})
}
