package domain

import "time"

// User 表示平台用户。
//
// 消息核心只引用用户，不拥有用户：线程参与者、消息收发方、
// 已读回执和通知都指向这里的 ID，用户的增删改由外部系统负责。
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string     `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email        string     `json:"email" gorm:"type:varchar(255)"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	Role         Role       `json:"role" gorm:"type:varchar(20);default:'client';index"`
	IsStaff      bool       `json:"isStaff" gorm:"default:false"`
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	WebsiteID    string     `json:"websiteId" gorm:"type:varchar(36);index"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// IsAdminTier 判断用户是否为管理员层级。
func (u *User) IsAdminTier() bool {
	return u.Role.IsAdminTier()
}

// UserDirectory 定义消息核心对用户目录的只读依赖。
type UserDirectory interface {
	GetUser(id string) (*User, error)
	ListStaff(websiteID string) ([]User, error)
}
