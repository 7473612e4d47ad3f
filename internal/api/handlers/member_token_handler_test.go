package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/auth"
	"github.com/Mieluoxxx/Lumina-API/internal/ledger"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"gorm.io/gorm"
)

// seedMemberBalance 走完整的发放→分配链路给成员充值
func seedMemberBalance(t *testing.T, db *gorm.DB, departmentID uint, perMember int) {
	service := ledger.NewService(db)
	tokens, err := service.Issue(superAdminIdentity(), ledger.IssueRequest{
		DepartmentIDs: []uint{departmentID},
		Quantity:      perMember * 10,
		EndDate:       time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("failed to seed issuance: %v", err)
	}

	admin := auth.Identity{MemberID: 998, DepartmentID: departmentID, Role: models.RoleDepartmentAdmin}
	if err := service.Distribute(admin, tokens[0].ID, perMember); err != nil {
		t.Fatalf("failed to seed distribution: %v", err)
	}
}

func TestMemberTokenHandler_GetBalance(t *testing.T) {
	router, db := setupLedgerTestRouter(t)
	dept, members := seedTestDepartment(t, db, "design", 1)
	seedMemberBalance(t, db, dept, 25)

	req, _ := http.NewRequest("GET", "/api/members/tokens/balance", nil)
	withIdentity(req, members[0].ID, models.RoleMember, dept)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		TokenQuantity int `json:"token_quantity"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.TokenQuantity != 25 {
		t.Errorf("Expected balance 25, got %d", body.TokenQuantity)
	}
}

func TestMemberTokenHandler_ListUsages_OldestFirst(t *testing.T) {
	router, db := setupLedgerTestRouter(t)
	dept, members := seedTestDepartment(t, db, "design", 1)

	// 两轮分配产生两个份额
	seedMemberBalance(t, db, dept, 5)
	seedMemberBalance(t, db, dept, 8)

	req, _ := http.NewRequest("GET", "/api/members/tokens", nil)
	withIdentity(req, members[0].ID, models.RoleMember, dept)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var dtos []ledger.UsageDTO
	json.Unmarshal(resp.Body.Bytes(), &dtos)
	if len(dtos) != 2 {
		t.Fatalf("Expected 2 usages, got %d", len(dtos))
	}
	if dtos[0].Quantity != 5 || dtos[1].Quantity != 8 {
		t.Errorf("Expected oldest-first order [5 8], got [%d %d]", dtos[0].Quantity, dtos[1].Quantity)
	}
}

func TestMemberTokenHandler_UseTokens_Success(t *testing.T) {
	router, db := setupLedgerTestRouter(t)
	dept, members := seedTestDepartment(t, db, "design", 1)
	seedMemberBalance(t, db, dept, 20)

	reqBody := ledger.UseRequest{
		Cost:          3,
		UseType:       models.UseTypeRemoveBackground,
		ImageQuantity: 3,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/members/tokens", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	withIdentity(req, members[0].ID, models.RoleMember, dept)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.Code, resp.Body.String())
	}

	var member models.Member
	db.First(&member, members[0].ID)
	if member.TokenQuantity != 17 {
		t.Errorf("Expected balance 17 after use, got %d", member.TokenQuantity)
	}

	// 消费写入审计日志
	var logCount int64
	db.Model(&models.TokenLog{}).
		Where("log_type = ? AND member_id = ?", models.LogTypeUse, members[0].ID).
		Count(&logCount)
	if logCount != 1 {
		t.Errorf("Expected 1 use log, got %d", logCount)
	}
}

func TestMemberTokenHandler_UseTokens_InsufficientBalance(t *testing.T) {
	router, db := setupLedgerTestRouter(t)
	dept, members := seedTestDepartment(t, db, "design", 1)
	seedMemberBalance(t, db, dept, 2)

	reqBody := ledger.UseRequest{
		Cost:          5,
		UseType:       models.UseTypeRemoveBackground,
		ImageQuantity: 5,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/api/members/tokens", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	withIdentity(req, members[0].ID, models.RoleMember, dept)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d. Body: %s", resp.Code, resp.Body.String())
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("INSUFFICIENT_BALANCE")) {
		t.Errorf("Expected INSUFFICIENT_BALANCE code. Body: %s", resp.Body.String())
	}

	// 失败的消费不留痕
	var member models.Member
	db.First(&member, members[0].ID)
	if member.TokenQuantity != 2 {
		t.Errorf("Expected balance unchanged at 2, got %d", member.TokenQuantity)
	}
}

func TestMemberTokenHandler_UseTokens_ValidationError(t *testing.T) {
	router, db := setupLedgerTestRouter(t)
	dept, members := seedTestDepartment(t, db, "design", 1)

	req, _ := http.NewRequest("POST", "/api/members/tokens", bytes.NewBufferString(`{"cost": 3}`))
	req.Header.Set("Content-Type", "application/json")
	withIdentity(req, members[0].ID, models.RoleMember, dept)
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}
