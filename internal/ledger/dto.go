package ledger

import (
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/models"
)

// IssueRequest 代币发放请求
type IssueRequest struct {
	DepartmentIDs []uint    `json:"department_ids" binding:"required,min=1"`
	Quantity      int       `json:"quantity" binding:"required"`
	EndDate       time.Time `json:"end_date" binding:"required"`
}

// DistributeRequest 代币分配请求
type DistributeRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// UseRequest 代币消费请求
type UseRequest struct {
	Cost          int    `json:"cost" binding:"required"`
	UseType       string `json:"use_type" binding:"required"`
	Model         string `json:"model"`
	ImageQuantity int    `json:"image_quantity"`
}

// TokenDTO 发放记录响应
type TokenDTO struct {
	TokenID        uint      `json:"token_id"`
	DepartmentID   uint      `json:"department_id"`
	Quantity       int       `json:"quantity"`
	RemainQuantity int       `json:"remain_quantity"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// ToTokenDTO 模型转换为响应对象
func ToTokenDTO(token *models.Token) *TokenDTO {
	return &TokenDTO{
		TokenID:        token.ID,
		DepartmentID:   token.DepartmentID,
		Quantity:       token.Quantity,
		RemainQuantity: token.RemainQuantity,
		StartDate:      token.StartDate,
		EndDate:        token.EndDate,
	}
}

// UsageDTO 成员份额响应
type UsageDTO struct {
	UsageID   uint      `json:"usage_id"`
	TokenID   uint      `json:"token_id"`
	Quantity  int       `json:"quantity"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ToUsageDTO 模型转换为响应对象
func ToUsageDTO(usage *models.TokenUsage) *UsageDTO {
	return &UsageDTO{
		UsageID:   usage.ID,
		TokenID:   usage.TokenID,
		Quantity:  usage.Quantity,
		StartDate: usage.StartDate,
		EndDate:   usage.EndDate,
	}
}
