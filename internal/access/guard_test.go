package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/units"
)

func strptr(s string) *string { return &s }

func testUser(id string, role domain.Role) *domain.User {
	return &domain.User{ID: id, Role: role, IsActive: true}
}

func TestCanStartThread(t *testing.T) {
	guard := NewGuard(units.NewStaticProvider())
	client := testUser("client-1", domain.RoleClient)
	writer := testUser("writer-1", domain.RoleWriter)
	support := testUser("support-1", domain.RoleSupport)

	t.Run("活跃普通订单允许开线程", func(t *testing.T) {
		unit := &domain.WorkUnit{ID: "o1", Kind: domain.UnitOrder, Status: domain.UnitStatusActive, ClientID: client.ID}
		assert.True(t, guard.CanStartThread(client, unit))
	})

	t.Run("归档订单拒绝开线程", func(t *testing.T) {
		unit := &domain.WorkUnit{ID: "o1", Kind: domain.UnitOrder, Status: domain.UnitStatusArchived, ClientID: client.ID}
		assert.False(t, guard.CanStartThread(client, unit))
	})

	t.Run("取消订单拒绝开线程", func(t *testing.T) {
		unit := &domain.WorkUnit{ID: "o1", Kind: domain.UnitOrder, Status: domain.UnitStatusCancelled, ClientID: client.ID}
		assert.False(t, guard.CanStartThread(client, unit))
	})

	t.Run("特殊订单一律拒绝", func(t *testing.T) {
		unit := &domain.WorkUnit{ID: "s1", Kind: domain.UnitSpecialOrder, Status: domain.UnitStatusActive, IsSpecial: true}
		assert.False(t, guard.CanStartThread(client, unit))
		assert.False(t, guard.CanStartThread(support, unit))
	})

	t.Run("班课仅限内部人员和指派讲师", func(t *testing.T) {
		unit := &domain.WorkUnit{ID: "c1", Kind: domain.UnitClassBundle, Status: domain.UnitStatusActive, IsClass: true, CounterpartID: writer.ID}
		assert.False(t, guard.CanStartThread(client, unit))
		assert.True(t, guard.CanStartThread(writer, unit))
		assert.True(t, guard.CanStartThread(support, unit))
	})
}

func TestAssertCanSend(t *testing.T) {
	provider := units.NewStaticProvider()
	guard := NewGuard(provider)

	client := testUser("client-1", domain.RoleClient)
	writer := testUser("writer-1", domain.RoleWriter)
	outsider := testUser("other-1", domain.RoleClient)
	support := testUser("support-1", domain.RoleSupport)

	provider.Register(&domain.WorkUnit{
		ID: "order-1", Kind: domain.UnitOrder, Status: domain.UnitStatusActive,
		ClientID: client.ID, CounterpartID: writer.ID,
	})
	provider.Register(&domain.WorkUnit{
		ID: "order-2", Kind: domain.UnitOrder, Status: domain.UnitStatusArchived,
		ClientID: client.ID, CounterpartID: writer.ID,
	})

	orderThread := func(orderID string, active bool, override bool, participants ...*domain.User) *domain.Thread {
		th := &domain.Thread{
			ID: "t-" + orderID, Type: domain.ThreadTypeOrder, OrderID: strptr(orderID),
			IsActive: active, AdminOverride: override,
		}
		for _, p := range participants {
			th.Participants = append(th.Participants, *p)
		}
		return th
	}

	t.Run("参与者向活跃订单线程发送成功", func(t *testing.T) {
		decision, err := guard.AssertCanSend(client, orderThread("order-1", true, false, client, writer))
		require.NoError(t, err)
		assert.False(t, decision.Enroll)
	})

	t.Run("有单元访问权的非参与者被懒加入而非拒绝", func(t *testing.T) {
		decision, err := guard.AssertCanSend(writer, orderThread("order-1", true, false, client))
		require.NoError(t, err)
		assert.True(t, decision.Enroll)
	})

	t.Run("无关用户被拒绝", func(t *testing.T) {
		_, err := guard.AssertCanSend(outsider, orderThread("order-1", true, false, client, writer))
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("归档订单拒绝普通用户发送", func(t *testing.T) {
		_, err := guard.AssertCanSend(client, orderThread("order-2", true, false, client, writer))
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("管理员覆盖放行归档订单", func(t *testing.T) {
		_, err := guard.AssertCanSend(client, orderThread("order-2", true, true, client, writer))
		assert.NoError(t, err)
	})

	t.Run("内部人员不受归档状态限制", func(t *testing.T) {
		_, err := guard.AssertCanSend(support, orderThread("order-2", true, false, client, writer))
		assert.NoError(t, err)
	})

	t.Run("停用线程拒绝发送", func(t *testing.T) {
		_, err := guard.AssertCanSend(client, orderThread("order-1", false, false, client, writer))
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("工作单元不存在返回NotFound", func(t *testing.T) {
		_, err := guard.AssertCanSend(client, orderThread("order-missing", true, false, client))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("general线程只看参与者与活跃状态", func(t *testing.T) {
		th := &domain.Thread{
			ID: "g1", Type: domain.ThreadTypeGeneral, IsActive: true,
			Participants: []domain.User{*client},
		}
		_, err := guard.AssertCanSend(client, th)
		assert.NoError(t, err)

		_, err = guard.AssertCanSend(outsider, th)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("班课线程要求参与者或内部人员", func(t *testing.T) {
		th := &domain.Thread{
			ID: "cb1", Type: domain.ThreadTypeClassBundle, ClassBundleID: strptr("bundle-1"),
			IsActive: true, Participants: []domain.User{*writer},
		}
		_, err := guard.AssertCanSend(writer, th)
		assert.NoError(t, err)

		_, err = guard.AssertCanSend(support, th)
		assert.NoError(t, err)

		_, err = guard.AssertCanSend(outsider, th)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})
}

func TestCanReply(t *testing.T) {
	provider := units.NewStaticProvider()
	guard := NewGuard(provider)

	client := testUser("client-1", domain.RoleClient)
	writer := testUser("writer-1", domain.RoleWriter)
	outsider := testUser("other-1", domain.RoleClient)

	provider.Register(&domain.WorkUnit{
		ID: "order-1", Kind: domain.UnitOrder, Status: domain.UnitStatusActive,
		ClientID: client.ID, CounterpartID: writer.ID,
	})

	th := &domain.Thread{
		ID: "t1", Type: domain.ThreadTypeOrder, OrderID: strptr("order-1"),
		IsActive: true, Participants: []domain.User{*client},
	}

	assert.True(t, guard.CanReply(client, th), "参与者可以回复")
	assert.True(t, guard.CanReply(writer, th), "有单元访问权的非参与者可以回复")
	assert.False(t, guard.CanReply(outsider, th), "无关用户不能回复")
	assert.True(t, guard.CanReply(testUser("adm", domain.RoleAdmin), th), "内部人员永远可以回复")
}
