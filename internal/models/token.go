package models

import "time"

// Token 部门代币发放记录（grant）
// 由总管理员按部门发放，remain_quantity 表示尚未分配给成员的余量
// 不变量: 0 <= remain_quantity <= quantity
type Token struct {
	ID             uint      `gorm:"primaryKey" json:"token_id"`
	DepartmentID   uint      `gorm:"not null;index" json:"department_id"`
	Quantity       int       `gorm:"not null" json:"quantity"`        // 发放总量
	RemainQuantity int       `gorm:"not null" json:"remain_quantity"` // 未分配余量
	StartDate      time.Time `gorm:"not null" json:"start_date"`
	EndDate        time.Time `gorm:"not null" json:"end_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Token) TableName() string {
	return "tokens"
}

// TokenUsage 成员持有的代币份额（chunk）
// 每次分配给每个成员各生成一条，消费时按最旧优先扣减，耗尽即删除
// 有效期继承自所属的 Token
type TokenUsage struct {
	ID        uint      `gorm:"primaryKey" json:"usage_id"`
	MemberID  uint      `gorm:"not null;index" json:"member_id"`
	TokenID   uint      `gorm:"not null;index" json:"token_id"`
	Quantity  int       `gorm:"not null" json:"quantity"` // 本份额剩余可消费数量
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (TokenUsage) TableName() string {
	return "token_usages"
}
