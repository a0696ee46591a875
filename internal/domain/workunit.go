package domain

// UnitKind 表示线程可以挂靠的工作单元种类。
type UnitKind string

const (
	UnitOrder        UnitKind = "order"         // 普通订单
	UnitSpecialOrder UnitKind = "special_order" // 特殊订单
	UnitClassBundle  UnitKind = "class_bundle"  // 班课套餐
)

// UnitStatus 表示工作单元的状态。
type UnitStatus string

const (
	UnitStatusActive    UnitStatus = "active"
	UnitStatusArchived  UnitStatus = "archived"
	UnitStatusCancelled UnitStatus = "cancelled"
)

// WorkUnit 是订单/特殊订单/班课在消息核心中的投影。
//
// 订单生命周期、定价、支付均在外部系统中完成，这里只读取
// 线程守卫所需的最小字段。
type WorkUnit struct {
	ID            string     `json:"id"`
	Kind          UnitKind   `json:"kind"`
	Status        UnitStatus `json:"status"`
	ClientID      string     `json:"clientId"`      // 下单客户
	CounterpartID string     `json:"counterpartId"` // 指派的对方（写手/讲师）
	WebsiteID     string     `json:"websiteId"`     // 所属租户
	IsSpecial     bool       `json:"isSpecial"`
	IsClass       bool       `json:"isClass"`
}

// IsLocked 判断工作单元是否处于不可发消息的终态。
func (w *WorkUnit) IsLocked() bool {
	return w.Status == UnitStatusArchived || w.Status == UnitStatusCancelled
}

// WorkUnitProvider 定义消息核心对工作单元数据源的只读依赖。
type WorkUnitProvider interface {
	GetWorkUnit(kind UnitKind, id string) (*WorkUnit, error)
}
