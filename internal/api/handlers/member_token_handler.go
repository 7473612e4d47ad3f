package handlers

import (
	"net/http"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/ledger"
	"github.com/gin-gonic/gin"
)

// MemberTokenHandler 成员侧代币 HTTP 处理器
// 查询份额、查询余额、消费自己的余额
type MemberTokenHandler struct {
	service *ledger.Service
}

// NewMemberTokenHandler 创建 MemberTokenHandler 实例
func NewMemberTokenHandler(service *ledger.Service) *MemberTokenHandler {
	return &MemberTokenHandler{service: service}
}

// ListUsages 查询调用者自己的代币份额，最旧在前
// @Summary 查询代币份额
// @Tags members
// @Produce json
// @Success 200 {array} ledger.UsageDTO
// @Router /api/members/tokens [get]
func (h *MemberTokenHandler) ListUsages(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	usages, err := h.service.UsagesByMember(identity)
	if err != nil {
		handleLedgerError(c, err)
		return
	}

	dtos := make([]*ledger.UsageDTO, len(usages))
	for i, usage := range usages {
		dtos[i] = ledger.ToUsageDTO(usage)
	}
	c.JSON(http.StatusOK, dtos)
}

// GetBalance 查询调用者自己的缓存余额
// @Summary 查询余额
// @Tags members
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/members/tokens/balance [get]
func (h *MemberTokenHandler) GetBalance(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	balance, err := h.service.Balance(identity.MemberID)
	if err != nil {
		handleLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token_quantity": balance})
}

// UseTokens 消费调用者自己的余额
// @Summary 消费代币
// @Tags members
// @Accept json
// @Produce json
// @Param request body ledger.UseRequest true "消费参数"
// @Success 200 {object} gin.H
// @Failure 400 {object} ErrorResponse
// @Router /api/members/tokens [post]
func (h *MemberTokenHandler) UseTokens(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	var req ledger.UseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request parameters",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.service.Use(identity, req); err != nil {
		handleLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "tokens used"})
}
