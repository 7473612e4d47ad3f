package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Mieluoxxx/Lumina-API/internal/runner"
	"github.com/gin-gonic/gin"
)

// DeviceHandler GPU 设备状态 HTTP 处理器
// 对运行器的只读状态透传（健康、CUDA 可用性与占用）
type DeviceHandler struct {
	runnerClient *runner.Client
}

// NewDeviceHandler 创建 DeviceHandler 实例
func NewDeviceHandler(runnerClient *runner.Client) *DeviceHandler {
	return &DeviceHandler{runnerClient: runnerClient}
}

// Health 运行器健康检查
// @Summary 运行器健康检查
// @Tags device
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/device/health [get]
func (h *DeviceHandler) Health(c *gin.Context) {
	h.proxyStatus(c, h.runnerClient.Health)
}

// CUDAAvailable CUDA 是否可用
// @Summary CUDA 可用性
// @Tags device
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/device/cuda_available [get]
func (h *DeviceHandler) CUDAAvailable(c *gin.Context) {
	h.proxyStatus(c, h.runnerClient.CUDAAvailable)
}

// CUDAUsage CUDA 显存占用
// @Summary CUDA 显存占用
// @Tags device
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/device/cuda_usage [get]
func (h *DeviceHandler) CUDAUsage(c *gin.Context) {
	h.proxyStatus(c, h.runnerClient.CUDAUsage)
}

// proxyStatus 执行一次状态查询并包装响应
func (h *DeviceHandler) proxyStatus(c *gin.Context, query func(context.Context) (json.RawMessage, error)) {
	data, err := query(c.Request.Context())
	if err != nil {
		handleRunnerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}
