package domain

// Role 表示平台内的参与者角色。
//
// 角色集合是封闭的：所有按角色分支的逻辑（可见性矩阵、线程守卫）
// 都要求对每个成员做穷举处理，新增角色时必须同步更新这些分支。
type Role string

const (
	RoleClient     Role = "client"     // 客户（下单方）
	RoleWriter     Role = "writer"     // 写手（接单方）
	RoleEditor     Role = "editor"     // 编辑
	RoleSupport    Role = "support"    // 客服
	RoleAdmin      Role = "admin"      // 管理员
	RoleSuperAdmin Role = "superadmin" // 超级管理员
	RoleUnknown    Role = "unknown"    // 未解析角色
)

// ParseRole 将字符串解析为角色，未识别的值返回 RoleUnknown。
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleClient, RoleWriter, RoleEditor, RoleSupport, RoleAdmin, RoleSuperAdmin:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// IsStaff 判断角色是否属于平台内部人员。
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin, RoleEditor, RoleSupport:
		return true
	default:
		return false
	}
}

// IsAdminTier 判断角色是否为管理员层级（可查看可达线程内的全部消息）。
func (r Role) IsAdminTier() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// StaffRoles 返回全部内部人员角色。
func StaffRoles() []Role {
	return []Role{RoleEditor, RoleSupport, RoleAdmin, RoleSuperAdmin}
}
