package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/auth"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidQuantity 数量必须为正数
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInsufficientQuantity 发放/分配数量不足以覆盖目标成员
	ErrInsufficientQuantity = errors.New("insufficient token quantity")
	// ErrInsufficientBalance 成员余额不足
	ErrInsufficientBalance = errors.New("insufficient token balance")
	// ErrEmptyDepartment 部门没有成员，无法分配
	ErrEmptyDepartment = errors.New("department has no members")
	// ErrLedgerCorrupted 余额预检通过但份额不足
	// 说明缓存余额与份额明细失配，属于账本损坏，不是用户错误
	ErrLedgerCorrupted = errors.New("ledger corrupted: cached balance exceeds usage chunks")
)

// depletionBatchSize 消费扣减时每轮取出的份额数上限
const depletionBatchSize = 100

// Service 代币账本业务逻辑层
// 所有写操作都在单个数据库事务内完成，并对涉及的
// Token / Member 行持有排他锁，保证并发下的守恒不变量
type Service struct {
	db   *gorm.DB
	repo *Repository
}

// NewService 创建 Service 实例
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, repo: NewRepository(db)}
}

// Issue 向若干部门各发放一笔代币
// 仅 super_admin 可调用；每个部门要求 quantity >= 部门成员数，
// 任何一个部门校验失败则整体失败，不做部分写入
func (s *Service) Issue(id auth.Identity, req IssueRequest) ([]*models.Token, error) {
	if err := auth.RequireRole(id, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if len(req.DepartmentIDs) == 0 {
		return nil, fmt.Errorf("%w: department_ids is empty", ErrInvalidQuantity)
	}

	var tokens []*models.Token
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// 先校验所有部门，再做任何写入
		for _, departmentID := range req.DepartmentIDs {
			if _, err := repo.FindDepartment(departmentID); err != nil {
				return err
			}
			count, err := repo.CountMembersByDepartment(departmentID)
			if err != nil {
				return err
			}
			if int64(req.Quantity) < count {
				return fmt.Errorf("%w: department %d has %d members",
					ErrInsufficientQuantity, departmentID, count)
			}
		}

		now := time.Now()
		for _, departmentID := range req.DepartmentIDs {
			token := &models.Token{
				DepartmentID:   departmentID,
				Quantity:       req.Quantity,
				RemainQuantity: req.Quantity,
				StartDate:      now,
				EndDate:        req.EndDate,
			}
			if err := repo.CreateToken(token); err != nil {
				return err
			}
			tokens = append(tokens, token)

			deptID := departmentID
			quantity := req.Quantity
			entry := &models.TokenLog{
				LogType:      models.LogTypeIssue,
				MemberID:     id.MemberID,
				DepartmentID: &deptID,
				Quantity:     &quantity,
			}
			if err := repo.CreateLog(entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Distribute 将一笔发放按人均 quantity 分配给部门全体成员
// 仅该部门的 department_admin 可调用；要求
// remain_quantity >= quantity * 成员数，整个分配是单个原子事务：
// 任何成员都不可能观察到"发放已扣减但份额未入账"的中间状态
func (s *Service) Distribute(id auth.Identity, tokenID uint, quantity int) error {
	if err := auth.RequireRole(id, models.RoleDepartmentAdmin); err != nil {
		return err
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		token, err := repo.FindTokenForUpdate(tokenID)
		if err != nil {
			return err
		}
		if err := auth.RequireDepartment(id, token.DepartmentID); err != nil {
			return err
		}

		members, err := repo.FindMembersByDepartment(token.DepartmentID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return ErrEmptyDepartment
		}

		total := quantity * len(members)
		if token.RemainQuantity < total {
			return fmt.Errorf("%w: need %d, remain %d",
				ErrInsufficientQuantity, total, token.RemainQuantity)
		}

		token.RemainQuantity -= total
		if err := repo.UpdateTokenRemain(token); err != nil {
			return err
		}

		for _, member := range members {
			usage := &models.TokenUsage{
				MemberID:  member.ID,
				TokenID:   token.ID,
				Quantity:  quantity,
				StartDate: token.StartDate,
				EndDate:   token.EndDate,
			}
			if err := repo.CreateUsage(usage); err != nil {
				return err
			}
			if err := repo.AddMemberQuantity(member.ID, quantity); err != nil {
				return err
			}
		}

		deptID := token.DepartmentID
		logQuantity := total
		entry := &models.TokenLog{
			LogType:      models.LogTypeDistribute,
			MemberID:     id.MemberID,
			DepartmentID: &deptID,
			Quantity:     &logQuantity,
		}
		return repo.CreateLog(entry)
	})
}

// Use 消费调用者自己的余额
// 扣减算法：按份额创建顺序（最旧优先）分批贪心消费，
// 份额被耗尽即删除；全部扣减 + 缓存余额更新 + 审计日志为单个原子事务
func (s *Service) Use(id auth.Identity, req UseRequest) error {
	if req.Cost <= 0 {
		return ErrInvalidQuantity
	}
	if req.UseType == "" {
		return fmt.Errorf("%w: use_type is required", ErrInvalidQuantity)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// 成员行先加锁，余额预检和分页扣减才能观察到同一快照
		member, err := repo.FindMemberForUpdate(id.MemberID)
		if err != nil {
			return err
		}
		if member.TokenQuantity < req.Cost {
			return ErrInsufficientBalance
		}

		remaining := req.Cost
		for remaining > 0 {
			usages, err := repo.FindUsagePage(member.ID, depletionBatchSize)
			if err != nil {
				return err
			}
			if len(usages) == 0 {
				// 预检保证余额充足，走到这里说明明细和缓存失配
				return ErrLedgerCorrupted
			}

			for _, usage := range usages {
				if remaining <= 0 {
					break
				}
				if usage.Quantity <= remaining {
					remaining -= usage.Quantity
					if err := repo.DeleteUsage(usage); err != nil {
						return err
					}
				} else {
					usage.Quantity -= remaining
					remaining = 0
					if err := repo.UpdateUsageQuantity(usage); err != nil {
						return err
					}
				}
			}
		}

		if err := repo.AddMemberQuantity(member.ID, -req.Cost); err != nil {
			return err
		}

		deptID := member.DepartmentID
		cost := req.Cost
		useType := req.UseType
		entry := &models.TokenLog{
			LogType:       models.LogTypeUse,
			MemberID:      member.ID,
			DepartmentID:  &deptID,
			Quantity:      &cost,
			UseType:       &useType,
			ImageQuantity: &req.ImageQuantity,
		}
		if req.Model != "" {
			entry.Model = &req.Model
		}
		return repo.CreateLog(entry)
	})
}

// TokensByDepartment 查询发放记录
// 部门管理员只能查看本部门；总管理员可指定部门，不指定则查看全部
func (s *Service) TokensByDepartment(id auth.Identity, departmentID *uint) ([]*models.Token, error) {
	if err := auth.RequireRole(id, models.RoleSuperAdmin, models.RoleDepartmentAdmin); err != nil {
		return nil, err
	}

	if id.Role == models.RoleDepartmentAdmin {
		return s.repo.FindTokensByDepartment(id.DepartmentID)
	}
	if departmentID != nil {
		return s.repo.FindTokensByDepartment(*departmentID)
	}
	return s.repo.FindAllTokens()
}

// UsagesByMember 查询成员自己的全部份额，最旧在前
func (s *Service) UsagesByMember(id auth.Identity) ([]*models.TokenUsage, error) {
	return s.repo.FindUsagesByMember(id.MemberID)
}

// Balance 查询成员缓存余额
func (s *Service) Balance(memberID uint) (int, error) {
	var member models.Member
	if err := s.db.First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrMemberNotFound
		}
		return 0, err
	}
	return member.TokenQuantity, nil
}
