package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/resolver"
	"github.com/gin-gonic/gin"
)

// TaskHandler 任务结果 HTTP 处理器
// 按句柄轮询运行器，结构化结果按环境落地，二进制产物流式下发
type TaskHandler struct {
	resolver *resolver.Resolver
}

// NewTaskHandler 创建 TaskHandler 实例
func NewTaskHandler(res *resolver.Resolver) *TaskHandler {
	return &TaskHandler{resolver: res}
}

// GetTask 轮询任务结果
// 重复轮询同一句柄是安全的；Pending 不是错误，返回原始状态载荷
// @Summary 轮询任务结果
// @Tags tasks
// @Produce json
// @Param task_id path string true "任务句柄"
// @Param gpu_env query string false "local 或 remote，默认 remote"
// @Param output_path query string false "local 环境的图片输出目录"
// @Success 200 {object} gin.H
// @Router /api/generation/tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	if _, ok := middleware.IdentityFromContext(c); !ok {
		respondMissingIdentity(c)
		return
	}

	handle := c.Param("task_id")
	envValue := c.DefaultQuery("gpu_env", string(resolver.EnvRemote))
	env, err := resolver.ParseEnvironment(envValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_GPU_ENV",
				"message": err.Error(),
			},
		})
		return
	}

	outcome, err := h.resolver.Resolve(c.Request.Context(), handle, env, c.Query("output_path"))
	if err != nil {
		// 本地落盘中途失败时不回滚，已写入的数量要随错误一并报告
		if outcome != nil && outcome.Kind == resolver.OutcomeSaved {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "SAVE_FAILED",
					"message": err.Error(),
				},
				"written": outcome.Written,
			})
			return
		}
		handleResolveError(c, err)
		return
	}

	switch outcome.Kind {
	case resolver.OutcomeNotReady:
		c.Data(http.StatusOK, "application/json", outcome.Body)

	case resolver.OutcomeStatus:
		c.Data(http.StatusOK, "application/json", outcome.Body)

	case resolver.OutcomeSaved:
		c.JSON(http.StatusCreated, gin.H{"written": outcome.Written})

	case resolver.OutcomeUploaded:
		c.JSON(http.StatusCreated, gin.H{"image_list": outcome.URLs})

	case resolver.OutcomeArtifact:
		h.streamArtifact(c, outcome)

	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "unexpected outcome",
			},
		})
	}
}

// streamArtifact 把二进制产物原样转发给调用方
// 逐段拷贝，调用方断开时 request context 取消，
// 运行器侧连接随之释放；传输中途失败会中断连接而不是静默截断
func (h *TaskHandler) streamArtifact(c *gin.Context, outcome *resolver.Outcome) {
	defer outcome.Stream.Close()

	c.Header("Content-Type", outcome.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, outcome.Filename))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, outcome.Stream); err != nil {
		log.Printf("⚠️ 产物转发中断: task=%s err=%v", c.Param("task_id"), err)
		c.Abort()
	}
}

// handleResolveError 把解析错误映射为 HTTP 响应
func handleResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resolver.ErrUnknownEnvironment):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_GPU_ENV",
				"message": err.Error(),
			},
		})
	case errors.Is(err, resolver.ErrBadImagePayload):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"code":    "BAD_RUNNER_PAYLOAD",
				"message": err.Error(),
			},
		})
	default:
		handleRunnerError(c, err)
	}
}
