package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/auth"
	"github.com/Mieluoxxx/Lumina-API/internal/ledger"
	"github.com/gin-gonic/gin"
)

// AdminTokenHandler 管理端代币 HTTP 处理器
// 发放（super_admin）与分配（department_admin）
type AdminTokenHandler struct {
	service *ledger.Service
}

// NewAdminTokenHandler 创建 AdminTokenHandler 实例
func NewAdminTokenHandler(service *ledger.Service) *AdminTokenHandler {
	return &AdminTokenHandler{service: service}
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Error string `json:"error"`
}

// IssueTokens 向若干部门发放代币
// @Summary 发放代币
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ledger.IssueRequest true "发放参数"
// @Success 201 {array} ledger.TokenDTO
// @Failure 400 {object} ErrorResponse
// @Router /api/admin/tokens [post]
func (h *AdminTokenHandler) IssueTokens(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	var req ledger.IssueRequest
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

	tokens, err := h.service.Issue(identity, req)
	if err != nil {
		handleLedgerError(c, err)
		return
	}

	dtos := make([]*ledger.TokenDTO, len(tokens))
	for i, token := range tokens {
		dtos[i] = ledger.ToTokenDTO(token)
	}
	c.JSON(http.StatusCreated, dtos)
}

// ListTokens 查询发放记录
// 部门管理员只能看本部门；总管理员可用 department_id 过滤，缺省看全部
// @Summary 查询发放记录
// @Tags admin
// @Produce json
// @Param department_id query int false "部门 ID"
// @Success 200 {array} ledger.TokenDTO
// @Router /api/admin/tokens [get]
func (h *AdminTokenHandler) ListTokens(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	var departmentID *uint
	if raw := c.Query("department_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_DEPARTMENT_ID",
					"message": "Invalid department id",
				},
			})
			return
		}
		id := uint(parsed)
		departmentID = &id
	}

	tokens, err := h.service.TokensByDepartment(identity, departmentID)
	if err != nil {
		handleLedgerError(c, err)
		return
	}

	dtos := make([]*ledger.TokenDTO, len(tokens))
	for i, token := range tokens {
		dtos[i] = ledger.ToTokenDTO(token)
	}
	c.JSON(http.StatusOK, dtos)
}

// DistributeTokens 把一笔发放按人均数量分配给本部门全体成员
// @Summary 分配代币
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "发放记录 ID"
// @Param request body ledger.DistributeRequest true "人均数量"
// @Success 201 {object} gin.H
// @Failure 422 {object} ErrorResponse
// @Router /api/admin/tokens/{id} [post]
func (h *AdminTokenHandler) DistributeTokens(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	tokenID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_TOKEN_ID",
				"message": "Invalid token id",
			},
		})
		return
	}

	var req ledger.DistributeRequest
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

	if err := h.service.Distribute(identity, uint(tokenID), req.Quantity); err != nil {
		handleLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "tokens distributed"})
}

// respondMissingIdentity 身份缺失（中间件未挂载或被绕过）
func respondMissingIdentity(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "MISSING_IDENTITY",
			"message": "Missing caller identity",
		},
	})
}

// handleLedgerError 把账本错误映射为 HTTP 响应
func handleLedgerError(c *gin.Context, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrDepartmentMismatch):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		status, code = http.StatusUnprocessableEntity, "INVALID_QUANTITY"
	case errors.Is(err, ledger.ErrInsufficientQuantity):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_QUANTITY"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status, code = http.StatusBadRequest, "INSUFFICIENT_BALANCE"
	case errors.Is(err, ledger.ErrEmptyDepartment):
		status, code = http.StatusUnprocessableEntity, "EMPTY_DEPARTMENT"
	case errors.Is(err, ledger.ErrTokenNotFound),
		errors.Is(err, ledger.ErrMemberNotFound),
		errors.Is(err, ledger.ErrDepartmentNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ledger.ErrLedgerCorrupted):
		// 账本损坏与用户余额不足必须可区分
		status, code = http.StatusInternalServerError, "LEDGER_CORRUPTED"
	default:
		status, code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}
