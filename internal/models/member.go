package models

import "time"

// Role 成员角色常量
// 角色由外部身份子系统签发，本服务只做校验
const (
	RoleSuperAdmin      = "super_admin"      // 总管理员：可跨部门发放代币
	RoleDepartmentAdmin = "department_admin" // 部门管理员：可在本部门内分配代币
	RoleMember          = "member"           // 普通成员：只能消费自己的余额
)

// Member 成员账户
// 身份信息由外部身份子系统维护，账本只把它当作
// 缓存余额计数器 + 部门外键
type Member struct {
	ID            uint      `gorm:"primaryKey" json:"member_id"`
	LoginID       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"login_id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Role          string    `gorm:"type:varchar(30);not null;default:'member'" json:"role"`
	DepartmentID  uint      `gorm:"not null;index" json:"department_id"`
	TokenQuantity int       `gorm:"not null;default:0" json:"token_quantity"` // 缓存余额 = Σ TokenUsage.Quantity
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// 外键关系
	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}

// Department 部门
// 代币按部门发放，再由部门管理员向成员分配
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"department_id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Department) TableName() string {
	return "departments"
}
