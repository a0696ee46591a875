package access

import (
	"scribemarket/backend/internal/domain"
)

// Resolver 实现按角色对的消息可见性矩阵。
//
// 规则刻意不对称：客户可以看到所有写手发给自己的消息（即使线程里
// 还有第三方），但看不到同一线程内客户与内部人员之间的旁路沟通。
type Resolver struct{}

// NewResolver 创建可见性解析器。
func NewResolver() *Resolver {
	return &Resolver{}
}

// Visible 判断 viewer 是否可以看到 msg。
//
// 规则按优先级：
//  1. admin/superadmin 看到可达线程内的全部消息；
//  2. support/editor 看到自己收发的消息，以及客户发往对应内部
//     角色层的消息；
//  3. client 看到自己收发的消息，以及写手直接发给自己的消息；
//  4. writer 看到自己收发的消息，以及客户直接发给自己的消息；
//  5. 其他/未知角色只看到自己收发的消息。
//
// 未解析角色由调用方负责返回空集而不是报错（见 VisibleMessages）。
func (r *Resolver) Visible(viewer *domain.User, msg *domain.Message) bool {
	if msg.IsDeleted {
		return viewer.Role.IsAdminTier()
	}
	if msg.IsHidden && !viewer.Role.IsStaff() {
		return false
	}

	involved := msg.SenderID == viewer.ID || msg.RecipientID == viewer.ID

	switch viewer.Role {
	case domain.RoleAdmin, domain.RoleSuperAdmin:
		return true
	case domain.RoleSupport:
		return involved ||
			(msg.SenderRole == domain.RoleClient && msg.RecipientRole == domain.RoleSupport)
	case domain.RoleEditor:
		return involved ||
			(msg.SenderRole == domain.RoleClient && msg.RecipientRole == domain.RoleEditor)
	case domain.RoleClient:
		return involved ||
			(msg.SenderRole == domain.RoleWriter && msg.RecipientID == viewer.ID)
	case domain.RoleWriter:
		return involved ||
			(msg.SenderRole == domain.RoleClient && msg.RecipientID == viewer.ID)
	case domain.RoleUnknown:
		return false
	default:
		return involved
	}
}

// VisibleMessages 过滤出 viewer 可见的消息。
//
// 角色未解析时返回空集，不报错。
func (r *Resolver) VisibleMessages(viewer *domain.User, messages []domain.Message) []domain.Message {
	if viewer == nil || viewer.Role == domain.RoleUnknown {
		return []domain.Message{}
	}
	result := make([]domain.Message, 0, len(messages))
	for i := range messages {
		if r.Visible(viewer, &messages[i]) {
			result = append(result, messages[i])
		}
	}
	return result
}
