package models

import "time"

// LogType 账本操作类型常量
const (
	LogTypeIssue      = "issue"      // 发放：总管理员向部门发放代币
	LogTypeDistribute = "distribute" // 分配：部门管理员向成员分配代币
	LogTypeUse        = "use"        // 消费：成员消费代币
)

// UseType 消费用途常量
// 统计侧按工具维度聚合时使用，开放字符串，以下为内置工具
const (
	UseTypeRemoveBackground = "remove_bg"
	UseTypeCleanUp          = "clean_up"
	UseTypeTextToImage      = "text_to_image"
	UseTypeImageToImage     = "image_to_image"
	UseTypeInpainting       = "inpainting"
	UseTypeTraining         = "training"
)

// TokenLog 账本审计日志
// 只追加，创建后永不更新或删除，是统计与排名查询的唯一数据来源
type TokenLog struct {
	ID            uint      `gorm:"primaryKey" json:"log_id"`
	LogType       string    `gorm:"type:varchar(20);not null;index" json:"log_type"`
	MemberID      uint      `gorm:"not null;index" json:"member_id"`
	DepartmentID  *uint     `gorm:"index" json:"department_id,omitempty"`
	Quantity      *int      `json:"quantity,omitempty"`       // 涉及的代币数量
	UseType       *string   `gorm:"type:varchar(50)" json:"use_type,omitempty"`
	Model         *string   `gorm:"type:varchar(100)" json:"model,omitempty"`
	ImageQuantity *int      `json:"image_quantity,omitempty"` // 本次消费产出的图片数
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (TokenLog) TableName() string {
	return "token_logs"
}
