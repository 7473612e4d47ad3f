package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"github.com/Mieluoxxx/Lumina-API/internal/runner"
	"github.com/gin-gonic/gin"
)

// setupDeviceTestRouter 创建设备状态测试路由，运行器指向假服务
func setupDeviceTestRouter(t *testing.T, runnerHandler http.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	server := httptest.NewServer(runnerHandler)
	t.Cleanup(server.Close)

	handler := NewDeviceHandler(runner.NewClient(server.URL, 0))

	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.IdentityMiddleware())
	device := api.Group("/device")
	{
		device.GET("/health", handler.Health)
		device.GET("/cuda_available", handler.CUDAAvailable)
		device.GET("/cuda_usage", handler.CUDAUsage)
	}

	return router
}

func TestDeviceHandler_Health(t *testing.T) {
	router := setupDeviceTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/health" {
			t.Errorf("Expected /device/health, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	req, _ := http.NewRequest("GET", "/api/device/health", nil)
	withIdentity(req, 1, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Errorf("Expected proxied payload. Body: %s", resp.Body.String())
	}
}

func TestDeviceHandler_CUDAUsage(t *testing.T) {
	router := setupDeviceTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/cuda_usage" {
			t.Errorf("Expected /device/cuda_usage, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"memory_used_mb": 2048})
	})

	req, _ := http.NewRequest("GET", "/api/device/cuda_usage", nil)
	withIdentity(req, 1, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("memory_used_mb")) {
		t.Errorf("Expected usage payload. Body: %s", resp.Body.String())
	}
}

func TestDeviceHandler_RunnerUnavailable(t *testing.T) {
	router := setupDeviceTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "runner down", http.StatusInternalServerError)
	})

	req, _ := http.NewRequest("GET", "/api/device/health", nil)
	withIdentity(req, 1, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", resp.Code)
	}
}
