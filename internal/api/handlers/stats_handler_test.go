package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"github.com/Mieluoxxx/Lumina-API/internal/stats"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupStatsTestRouter 创建统计查询测试路由
func setupStatsTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Department{}, &models.Member{}, &models.TokenLog{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	handler := NewStatsHandler(stats.NewAggregator(db), stats.NewRequestCounter(time.Minute))

	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.IdentityMiddleware())
	{
		api.GET("/stats", handler.GetSystemStats)
		api.GET("/admin/statistics/rank/:criteria", handler.GetRank)
		api.GET("/admin/statistics/tokens/export", handler.ExportTokenRank)
		memberStats := api.Group("/members/:member_id/statistics")
		{
			memberStats.GET("/images", handler.GetDailyImages)
			memberStats.GET("/tools", handler.GetToolUsage)
			memberStats.GET("/tokens/usage", handler.GetTokenUsage)
		}
	}

	return router, db
}

// seedStatsMember 建成员并写一条消费日志
func seedStatsMember(t *testing.T, db *gorm.DB, name string, quantity int) uint {
	member := &models.Member{LoginID: name, Name: name, Role: models.RoleMember}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}

	useType := models.UseTypeRemoveBackground
	model := "u2net"
	images := quantity
	log := &models.TokenLog{
		LogType:       models.LogTypeUse,
		MemberID:      member.ID,
		Quantity:      &quantity,
		UseType:       &useType,
		Model:         &model,
		ImageQuantity: &images,
	}
	if err := db.Create(log).Error; err != nil {
		t.Fatalf("failed to seed use log: %v", err)
	}
	return member.ID
}

func TestStatsHandler_GetRank_Success(t *testing.T) {
	router, db := setupStatsTestRouter(t)
	seedStatsMember(t, db, "alice", 10)
	seedStatsMember(t, db, "bob", 4)

	req, _ := http.NewRequest("GET", "/api/admin/statistics/rank/token", nil)
	withIdentity(req, 999, models.RoleSuperAdmin, 0)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.Code, resp.Body.String())
	}

	var entries []stats.RankEntry
	json.Unmarshal(resp.Body.Bytes(), &entries)
	if len(entries) != 2 || entries[0].MemberName != "alice" {
		t.Errorf("Expected alice ranked first, got %+v", entries)
	}
}

func TestStatsHandler_GetRank_Forbidden(t *testing.T) {
	router, _ := setupStatsTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/admin/statistics/rank/token", nil)
	withIdentity(req, 1, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}
}

func TestStatsHandler_GetRank_UnknownCriterion(t *testing.T) {
	router, _ := setupStatsTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/admin/statistics/rank/department", nil)
	withIdentity(req, 999, models.RoleSuperAdmin, 0)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("UNKNOWN_CRITERION")) {
		t.Errorf("Expected UNKNOWN_CRITERION code. Body: %s", resp.Body.String())
	}
}

func TestStatsHandler_ExportTokenRank(t *testing.T) {
	router, db := setupStatsTestRouter(t)
	seedStatsMember(t, db, "alice", 10)

	req, _ := http.NewRequest("GET", "/api/admin/statistics/tokens/export", nil)
	withIdentity(req, 999, models.RoleSuperAdmin, 0)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); !bytes.Contains([]byte(got), []byte("token_rank.xlsx")) {
		t.Errorf("Expected xlsx attachment, got %q", got)
	}
	if resp.Body.Len() == 0 {
		t.Error("Expected non-empty workbook")
	}
}

func TestStatsHandler_MemberStats_Self(t *testing.T) {
	router, db := setupStatsTestRouter(t)
	memberID := seedStatsMember(t, db, "alice", 6)
	idStr := strconv.FormatUint(uint64(memberID), 10)

	req, _ := http.NewRequest("GET", "/api/members/"+idStr+"/statistics/tools", nil)
	withIdentity(req, memberID, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.Code, resp.Body.String())
	}

	var rows []stats.ToolUsage
	json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) != 1 || rows[0].UseType != models.UseTypeRemoveBackground {
		t.Errorf("Expected one remove_bg row, got %+v", rows)
	}
}

func TestStatsHandler_MemberStats_OtherMember(t *testing.T) {
	router, db := setupStatsTestRouter(t)
	memberID := seedStatsMember(t, db, "alice", 6)
	idStr := strconv.FormatUint(uint64(memberID), 10)

	// 查别人的统计被拒绝
	req, _ := http.NewRequest("GET", "/api/members/"+idStr+"/statistics/images", nil)
	withIdentity(req, memberID+1, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("MEMBER_MISMATCH")) {
		t.Errorf("Expected MEMBER_MISMATCH code. Body: %s", resp.Body.String())
	}
}

func TestStatsHandler_GetTokenUsage_InvalidDate(t *testing.T) {
	router, db := setupStatsTestRouter(t)
	memberID := seedStatsMember(t, db, "alice", 6)
	idStr := strconv.FormatUint(uint64(memberID), 10)

	req, _ := http.NewRequest("GET",
		"/api/members/"+idStr+"/statistics/tokens/usage?start_date=2026-08", nil)
	withIdentity(req, memberID, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("INVALID_DATE")) {
		t.Errorf("Expected INVALID_DATE code. Body: %s", resp.Body.String())
	}
}

func TestStatsHandler_GetSystemStats(t *testing.T) {
	router, _ := setupStatsTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/stats", nil)
	withIdentity(req, 1, models.RoleMember, 1)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("total_requests")) {
		t.Errorf("Expected counter fields. Body: %s", resp.Body.String())
	}
}
