package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

func newThreadService(f *fixture) *ThreadService {
	return NewThreadService(f.store, f.guard, f.resolver, f.provider, nil, zap.NewNop())
}

func TestCreateThread(t *testing.T) {
	t.Run("客户为自己的订单建线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		f.provider.Register(&domain.WorkUnit{
			ID: "order-2", Kind: domain.UnitOrder, Status: domain.UnitStatusActive,
			ClientID: f.client.ID, CounterpartID: f.writer.ID, WebsiteID: "site-1",
		})

		thread, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID:   "site-1",
			Type:        domain.ThreadTypeOrder,
			OrderID:     strptr("order-2"),
			Counterpart: f.writer.ID,
		})
		require.NoError(t, err)
		assert.True(t, thread.IsActive)
		assert.True(t, thread.HasParticipant(f.client.ID))
		assert.True(t, thread.HasParticipant(f.writer.ID))
	})

	t.Run("同一订单已有线程则复用", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		thread, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID: "site-1",
			Type:      domain.ThreadTypeOrder,
			OrderID:   strptr("order-1"),
		})
		require.NoError(t, err)
		assert.Equal(t, f.thread.ID, thread.ID)
	})

	t.Run("复用时内部人员被补为参与者", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		support := f.addUser("support-1", domain.RoleSupport)

		thread, err := svc.Create(support, CreateThreadInput{
			WebsiteID: "site-1",
			Type:      domain.ThreadTypeOrder,
			OrderID:   strptr("order-1"),
		})
		require.NoError(t, err)
		assert.Equal(t, f.thread.ID, thread.ID)
		assert.True(t, thread.HasParticipant(support.ID))
	})

	t.Run("挂靠多个工作单元被拒绝", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		_, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID:      "site-1",
			Type:           domain.ThreadTypeOrder,
			OrderID:        strptr("order-1"),
			SpecialOrderID: strptr("sp-1"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("类型与挂靠不匹配被拒绝", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		_, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID: "site-1",
			Type:      domain.ThreadTypeOrder,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("不存在的工作单元", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		_, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID: "site-1",
			Type:      domain.ThreadTypeOrder,
			OrderID:   strptr("no-such-order"),
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("客户不能为班课建线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		f.provider.Register(&domain.WorkUnit{
			ID: "class-1", Kind: domain.UnitClassBundle, Status: domain.UnitStatusActive,
			ClientID: f.client.ID, CounterpartID: f.writer.ID, WebsiteID: "site-1",
			IsClass: true,
		})

		_, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID:     "site-1",
			Type:          domain.ThreadTypeClassBundle,
			ClassBundleID: strptr("class-1"),
		})
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("讲师可以为班课建线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		f.provider.Register(&domain.WorkUnit{
			ID: "class-2", Kind: domain.UnitClassBundle, Status: domain.UnitStatusActive,
			ClientID: f.client.ID, CounterpartID: f.writer.ID, WebsiteID: "site-1",
			IsClass: true,
		})

		thread, err := svc.Create(f.writer, CreateThreadInput{
			WebsiteID:     "site-1",
			Type:          domain.ThreadTypeClassBundle,
			ClassBundleID: strptr("class-2"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ThreadTypeClassBundle, thread.Type)
	})

	t.Run("归档订单不能新建线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		f.provider.Register(&domain.WorkUnit{
			ID: "order-3", Kind: domain.UnitOrder, Status: domain.UnitStatusArchived,
			ClientID: f.client.ID, CounterpartID: f.writer.ID, WebsiteID: "site-1",
		})

		_, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID: "site-1",
			Type:      domain.ThreadTypeOrder,
			OrderID:   strptr("order-3"),
		})
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("普通线程不过单元守卫", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		thread, err := svc.Create(f.client, CreateThreadInput{
			WebsiteID:   "site-1",
			Type:        domain.ThreadTypeGeneral,
			Subject:     "question about revisions",
			Counterpart: f.writer.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ThreadTypeGeneral, thread.Type)
		assert.Len(t, thread.Participants, 2)
	})
}

func TestListVisible(t *testing.T) {
	f := newFixture(t)
	svc := newThreadService(f)

	t.Run("管理员看到租户下全部线程", func(t *testing.T) {
		threads, err := svc.ListVisible(f.admin)
		require.NoError(t, err)
		assert.Len(t, threads, 1)
	})

	t.Run("参与者看到自己的线程", func(t *testing.T) {
		threads, err := svc.ListVisible(f.client)
		require.NoError(t, err)
		require.Len(t, threads, 1)
		assert.Equal(t, f.thread.ID, threads[0].ID)
	})

	t.Run("非参与者列表为空", func(t *testing.T) {
		outsider := f.addUser("outsider-2", domain.RoleWriter)
		threads, err := svc.ListVisible(outsider)
		require.NoError(t, err)
		assert.Empty(t, threads)
	})

	t.Run("未知角色列表为空", func(t *testing.T) {
		threads, err := svc.ListVisible(&domain.User{ID: "x", Role: domain.RoleUnknown})
		require.NoError(t, err)
		assert.Empty(t, threads)
	})
}

func TestVisibleThreadMessages(t *testing.T) {
	f := newFixture(t)
	svc := newThreadService(f)

	_, err := f.send(t, f.client, "hello there")
	require.NoError(t, err)
	_, err = f.send(t, f.writer, "hi, working on it")
	require.NoError(t, err)

	t.Run("参与者看到往来消息", func(t *testing.T) {
		msgs, err := svc.VisibleMessages(f.client, f.thread.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("局外人被拒绝", func(t *testing.T) {
		outsider := f.addUser("outsider-3", domain.RoleClient)
		_, err := svc.VisibleMessages(outsider, f.thread.ID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("内部人员无需参与即可读取", func(t *testing.T) {
		support := f.addUser("support-2", domain.RoleSupport)
		msgs, err := svc.VisibleMessages(support, f.thread.ID)
		require.NoError(t, err)
		assert.NotNil(t, msgs)
	})

	t.Run("不存在的线程", func(t *testing.T) {
		_, err := svc.VisibleMessages(f.client, "no-such-thread")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestThreadAdministration(t *testing.T) {
	t.Run("内部人员可以禁用线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		require.NoError(t, svc.SetActive(f.admin, f.thread.ID, false))
		got, err := f.store.GetThread(f.thread.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("客户不能禁用线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		err := svc.SetActive(f.client, f.thread.ID, false)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("管理员覆盖仅限管理员层级", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		support := f.addUser("support-3", domain.RoleSupport)

		err := svc.SetAdminOverride(support, f.thread.ID, true)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)

		require.NoError(t, svc.SetAdminOverride(f.admin, f.thread.ID, true))
		got, err := f.store.GetThread(f.thread.ID)
		require.NoError(t, err)
		assert.True(t, got.AdminOverride)
	})

	t.Run("内部人员删除线程并级联清理", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)
		msg, err := f.send(t, f.client, "to be removed")
		require.NoError(t, err)

		require.NoError(t, svc.Delete(f.admin, f.thread.ID))
		_, err = f.store.GetThread(f.thread.ID)
		assert.Error(t, err)
		_, err = f.store.GetMessage(msg.ID)
		assert.Error(t, err)
	})

	t.Run("客户不能删除线程", func(t *testing.T) {
		f := newFixture(t)
		svc := newThreadService(f)

		err := svc.Delete(f.client, f.thread.ID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})
}
