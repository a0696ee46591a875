package domain

import "time"

// ThreadType 表示线程的业务类型。
type ThreadType string

const (
	ThreadTypeOrder       ThreadType = "order"        // 挂靠普通订单
	ThreadTypeSpecial     ThreadType = "special"      // 挂靠特殊订单
	ThreadTypeClassBundle ThreadType = "class_bundle" // 挂靠班课套餐
	ThreadTypeGeneral     ThreadType = "general"      // 不挂靠任何工作单元
	ThreadTypeDispute     ThreadType = "dispute"      // 纠纷沟通
)

// Thread 表示一条会话线程。
//
// 约束：OrderID、SpecialOrderID、ClassBundleID 至多一个非空，
// 且与 Type 匹配；general/dispute 线程三者均为空。
// 线程归属租户（WebsiteID），参与者是用户的多对多集合。
type Thread struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WebsiteID      string     `json:"websiteId" gorm:"type:varchar(36);index;not null"`
	Type           ThreadType `json:"type" gorm:"type:varchar(20);index;not null"`
	Subject        string     `json:"subject" gorm:"type:varchar(500)"`
	OrderID        *string    `json:"orderId,omitempty" gorm:"type:varchar(36);index"`
	SpecialOrderID *string    `json:"specialOrderId,omitempty" gorm:"type:varchar(36);index"`
	ClassBundleID  *string    `json:"classBundleId,omitempty" gorm:"type:varchar(36);index"`
	// 最近一条消息的方向快照，用于列表页的标签/可见性捷径。
	SenderRole    Role      `json:"senderRole" gorm:"type:varchar(20)"`
	RecipientRole Role      `json:"recipientRole" gorm:"type:varchar(20)"`
	IsActive      bool      `json:"isActive" gorm:"default:true;index"`
	AdminOverride bool      `json:"adminOverride" gorm:"default:false"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Participants []User `json:"participants,omitempty" gorm:"many2many:thread_participants"`
}

// UnitKind 返回线程挂靠的工作单元种类，general/dispute 返回 false。
func (t *Thread) UnitKind() (UnitKind, string, bool) {
	switch {
	case t.OrderID != nil:
		return UnitOrder, *t.OrderID, true
	case t.SpecialOrderID != nil:
		return UnitSpecialOrder, *t.SpecialOrderID, true
	case t.ClassBundleID != nil:
		return UnitClassBundle, *t.ClassBundleID, true
	default:
		return "", "", false
	}
}

// Validate 校验线程的挂靠约束。
func (t *Thread) Validate() error {
	refs := 0
	if t.OrderID != nil {
		refs++
	}
	if t.SpecialOrderID != nil {
		refs++
	}
	if t.ClassBundleID != nil {
		refs++
	}
	if refs > 1 {
		return ErrThreadMultipleUnits
	}
	switch t.Type {
	case ThreadTypeOrder:
		if t.OrderID == nil {
			return ErrThreadUnitMismatch
		}
	case ThreadTypeSpecial:
		if t.SpecialOrderID == nil {
			return ErrThreadUnitMismatch
		}
	case ThreadTypeClassBundle:
		if t.ClassBundleID == nil {
			return ErrThreadUnitMismatch
		}
	case ThreadTypeGeneral, ThreadTypeDispute:
		if refs != 0 {
			return ErrThreadUnitMismatch
		}
	default:
		return ErrThreadUnitMismatch
	}
	return nil
}

// HasParticipant 判断用户是否已是线程参与者。
func (t *Thread) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
