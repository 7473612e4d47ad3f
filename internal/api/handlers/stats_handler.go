package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/auth"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"github.com/Mieluoxxx/Lumina-API/internal/stats"
	"github.com/gin-gonic/gin"
)

// StatsHandler 统计查询 HTTP 处理器
// 全部是审计日志上的只读聚合，空日志返回空结果
type StatsHandler struct {
	aggregator     *stats.Aggregator
	requestCounter *stats.RequestCounter
}

// NewStatsHandler 创建 StatsHandler 实例
func NewStatsHandler(aggregator *stats.Aggregator, requestCounter *stats.RequestCounter) *StatsHandler {
	return &StatsHandler{
		aggregator:     aggregator,
		requestCounter: requestCounter,
	}
}

// GetRank 按维度查询成员排名（仅 super_admin）
// @Summary 成员排名
// @Tags statistics
// @Produce json
// @Param criteria path string true "image | tool | model | token"
// @Success 200 {object} gin.H
// @Failure 400 {object} ErrorResponse
// @Router /api/admin/statistics/rank/{criteria} [get]
func (h *StatsHandler) GetRank(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}
	if err := auth.RequireRole(identity, models.RoleSuperAdmin); err != nil {
		handleLedgerError(c, err)
		return
	}

	results, err := h.aggregator.Rank(c.Param("criteria"))
	if err != nil {
		if errors.Is(err, stats.ErrUnknownCriterion) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "UNKNOWN_CRITERION",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to compute ranking",
			},
		})
		return
	}

	c.JSON(http.StatusOK, results)
}

// ExportTokenRank 导出代币消费排名为 xlsx（仅 super_admin）
// @Summary 导出代币排名
// @Tags statistics
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Router /api/admin/statistics/tokens/export [get]
func (h *StatsHandler) ExportTokenRank(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}
	if err := auth.RequireRole(identity, models.RoleSuperAdmin); err != nil {
		handleLedgerError(c, err)
		return
	}

	content, err := h.aggregator.ExportTokenRank()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to export ranking",
			},
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="token_rank.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// requireSelf 成员统计只能查自己
func requireSelf(c *gin.Context) (uint, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return 0, false
	}

	memberID, err := strconv.ParseUint(c.Param("member_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_MEMBER_ID",
				"message": "Invalid member id",
			},
		})
		return 0, false
	}
	if uint(memberID) != identity.MemberID {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "MEMBER_MISMATCH",
				"message": "Member id does not match caller identity",
			},
		})
		return 0, false
	}
	return uint(memberID), true
}

// GetDailyImages 成员按天聚合的产出图片数
// @Summary 成员每日图片统计
// @Tags statistics
// @Produce json
// @Param member_id path int true "成员 ID"
// @Success 200 {array} stats.DailyImages
// @Router /api/members/{member_id}/statistics/images [get]
func (h *StatsHandler) GetDailyImages(c *gin.Context) {
	memberID, ok := requireSelf(c)
	if !ok {
		return
	}

	results, err := h.aggregator.DailyImagesByMember(memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to aggregate daily images",
			},
		})
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetToolUsage 成员按工具聚合的使用次数
// @Summary 成员工具使用统计
// @Tags statistics
// @Produce json
// @Param member_id path int true "成员 ID"
// @Success 200 {array} stats.ToolUsage
// @Router /api/members/{member_id}/statistics/tools [get]
func (h *StatsHandler) GetToolUsage(c *gin.Context) {
	memberID, ok := requireSelf(c)
	if !ok {
		return
	}

	results, err := h.aggregator.ToolUsageByMember(memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to aggregate tool usage",
			},
		})
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetModelUsage 成员按模型聚合的使用次数
// @Summary 成员模型使用统计
// @Tags statistics
// @Produce json
// @Param member_id path int true "成员 ID"
// @Success 200 {array} stats.ModelUsage
// @Router /api/members/{member_id}/statistics/models [get]
func (h *StatsHandler) GetModelUsage(c *gin.Context) {
	memberID, ok := requireSelf(c)
	if !ok {
		return
	}

	results, err := h.aggregator.ModelUsageByMember(memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to aggregate model usage",
			},
		})
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetTokenUsage 成员按天/工具聚合的代币消费，支持可选日期范围
// @Summary 成员代币消费统计
// @Tags statistics
// @Produce json
// @Param member_id path int true "成员 ID"
// @Param start_date query string false "RFC3339 起始时间"
// @Param end_date query string false "RFC3339 结束时间"
// @Success 200 {array} stats.TokenUsageRow
// @Router /api/members/{member_id}/statistics/tokens/usage [get]
func (h *StatsHandler) GetTokenUsage(c *gin.Context) {
	memberID, ok := requireSelf(c)
	if !ok {
		return
	}

	startDate, ok := parseDateQuery(c, "start_date")
	if !ok {
		return
	}
	endDate, ok := parseDateQuery(c, "end_date")
	if !ok {
		return
	}

	results, err := h.aggregator.TokenUsageByMember(memberID, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to aggregate token usage",
			},
		})
		return
	}
	c.JSON(http.StatusOK, results)
}

// parseDateQuery 解析可选的 RFC3339 日期查询参数
func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_DATE",
				"message": "Invalid " + name + ", expected RFC3339",
			},
		})
		return nil, false
	}
	return &parsed, true
}

// GetSystemStats 平台请求量统计
// @Summary 平台请求量统计
// @Tags statistics
// @Produce json
// @Success 200 {object} stats.RequestStats
// @Router /api/stats [get]
func (h *StatsHandler) GetSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.requestCounter.GetStats())
}
