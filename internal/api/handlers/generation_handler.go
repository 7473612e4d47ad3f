package handlers

import (
	"errors"
	"net/http"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/ledger"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"github.com/Mieluoxxx/Lumina-API/internal/resolver"
	"github.com/Mieluoxxx/Lumina-API/internal/runner"
	"github.com/gin-gonic/gin"
)

// GenerationHandler 图像生成任务 HTTP 处理器
// 先扣减调用者余额，再把任务提交给 GPU 运行器并立即返回句柄
type GenerationHandler struct {
	ledgerService *ledger.Service
	runnerClient  *runner.Client
}

// NewGenerationHandler 创建 GenerationHandler 实例
func NewGenerationHandler(ledgerService *ledger.Service, runnerClient *runner.Client) *GenerationHandler {
	return &GenerationHandler{
		ledgerService: ledgerService,
		runnerClient:  runnerClient,
	}
}

// RemoveBackground 提交去背景任务
// 成本为每张图片 1 代币；扣减成功后才会提交，
// 提交失败（DispatchError）不自动重试，由调用方决定是否重新提交
// @Summary 提交去背景任务
// @Tags generation
// @Accept multipart/form-data
// @Produce json
// @Param gpu_env path string true "local 或 remote"
// @Param images formData file true "待处理图片"
// @Success 202 {object} gin.H
// @Failure 502 {object} ErrorResponse
// @Router /api/generation/remove-bg/{gpu_env} [post]
func (h *GenerationHandler) RemoveBackground(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondMissingIdentity(c)
		return
	}

	if _, err := resolver.ParseEnvironment(c.Param("gpu_env")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_GPU_ENV",
				"message": err.Error(),
			},
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid multipart form",
				"details": err.Error(),
			},
		})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "At least one image is required",
			},
		})
		return
	}

	// 余额先行：扣减失败则任务根本不提交
	useReq := ledger.UseRequest{
		Cost:          len(files),
		UseType:       models.UseTypeRemoveBackground,
		ImageQuantity: len(files),
	}
	if err := h.ledgerService.Use(identity, useReq); err != nil {
		handleLedgerError(c, err)
		return
	}

	blobs := make([]runner.Blob, 0, len(files))
	for _, file := range files {
		reader, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Unreadable image upload",
					"details": err.Error(),
				},
			})
			return
		}
		defer reader.Close()

		blobs = append(blobs, runner.Blob{
			Field:       "images",
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Reader:      reader,
		})
	}

	handle, err := h.runnerClient.Submit(c.Request.Context(), "/remove-bg", nil, blobs)
	if err != nil {
		handleRunnerError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": handle})
}

// handleRunnerError 把运行器错误映射为 HTTP 响应
func handleRunnerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, runner.ErrDispatch):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"code":    "DISPATCH_ERROR",
				"message": err.Error(),
			},
		})
	case errors.Is(err, runner.ErrPoll):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"code":    "RUNNER_UNAVAILABLE",
				"message": err.Error(),
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": err.Error(),
			},
		})
	}
}
