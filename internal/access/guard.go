package access

import (
	"fmt"

	"scribemarket/backend/internal/domain"
)

// Guard 是线程级授权闸门：谁能开线程、谁能往线程里发消息。
type Guard struct {
	units domain.WorkUnitProvider
}

// NewGuard 创建线程守卫。
func NewGuard(units domain.WorkUnitProvider) *Guard {
	return &Guard{units: units}
}

// CanStartThread 判断用户能否为工作单元开启线程。
//
// 归档/取消的单元一律拒绝；特殊订单一律拒绝（只能由系统侧开启）；
// 班课单元仅限内部人员和指派讲师；其余放行。
func (g *Guard) CanStartThread(user *domain.User, unit *domain.WorkUnit) bool {
	if unit.IsLocked() {
		return false
	}
	if unit.IsSpecial {
		return false
	}
	if unit.IsClass {
		return user.Role.IsStaff() || unit.CounterpartID == user.ID
	}
	return true
}

// SendDecision 是 AssertCanSend 的结果。
type SendDecision struct {
	// Enroll 为真表示发送者有单元访问权但还不是参与者，
	// 应在首条消息时把发送者懒加入线程。
	Enroll bool
}

// AssertCanSend 校验用户能否向线程发送消息。
//
// 班课类型线程不做单元状态检查，只要求线程活跃（或管理员覆盖）。
// 挂靠单元的线程按单元访问权与单元状态逐项校验；对单元有合法
// 访问权的用户永远可以到达会话（懒加入），而不是被拒绝。
func (g *Guard) AssertCanSend(user *domain.User, thread *domain.Thread) (*SendDecision, error) {
	if thread.Type == domain.ThreadTypeClassBundle {
		if !thread.IsActive && !thread.AdminOverride {
			return nil, fmt.Errorf("thread is disabled: %w", domain.ErrAccessDenied)
		}
		if thread.HasParticipant(user.ID) || user.Role.IsStaff() {
			return &SendDecision{}, nil
		}
		return nil, fmt.Errorf("not a participant of class thread: %w", domain.ErrAccessDenied)
	}

	kind, unitID, scoped := thread.UnitKind()
	if !scoped {
		// general/dispute 线程：参与者或内部人员
		if !thread.HasParticipant(user.ID) && !user.Role.IsStaff() {
			return nil, fmt.Errorf("not a participant: %w", domain.ErrAccessDenied)
		}
		if !thread.IsActive && !thread.AdminOverride {
			return nil, fmt.Errorf("thread is disabled: %w", domain.ErrAccessDenied)
		}
		return &SendDecision{}, nil
	}

	unit, err := g.units.GetWorkUnit(kind, unitID)
	if err != nil {
		return nil, fmt.Errorf("work unit %s/%s: %w", kind, unitID, domain.ErrNotFound)
	}

	isParticipant := thread.HasParticipant(user.ID)
	hasAccess := unit.ClientID == user.ID ||
		unit.CounterpartID == user.ID ||
		user.Role.IsStaff() ||
		isParticipant
	if !hasAccess {
		return nil, fmt.Errorf("no access to work unit %s: %w", unitID, domain.ErrAccessDenied)
	}

	// 内部人员不受锁定状态限制，始终可达
	if !user.Role.IsStaff() {
		if unit.Status == domain.UnitStatusArchived && !thread.AdminOverride {
			return nil, fmt.Errorf("work unit archived: %w", domain.ErrAccessDenied)
		}
		if (unit.IsSpecial || unit.IsClass) && !thread.AdminOverride {
			return nil, fmt.Errorf("restricted work unit kind: %w", domain.ErrAccessDenied)
		}
		if !thread.IsActive && !thread.AdminOverride {
			return nil, fmt.Errorf("thread is disabled: %w", domain.ErrAccessDenied)
		}
	}

	return &SendDecision{Enroll: !isParticipant}, nil
}

// CanReply 判断用户能否回复线程内的消息。
//
// 回复权与单元访问权一致；内部人员永远允许。
func (g *Guard) CanReply(user *domain.User, thread *domain.Thread) bool {
	if user.Role.IsStaff() {
		return true
	}
	if thread.HasParticipant(user.ID) {
		return true
	}
	kind, unitID, scoped := thread.UnitKind()
	if !scoped {
		return false
	}
	unit, err := g.units.GetWorkUnit(kind, unitID)
	if err != nil {
		return false
	}
	return unit.ClientID == user.ID || unit.CounterpartID == user.ID
}
