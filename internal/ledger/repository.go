package ledger

import (
	"errors"

	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTokenNotFound 代币发放记录不存在
	ErrTokenNotFound = errors.New("token not found")
	// ErrMemberNotFound 成员不存在
	ErrMemberNotFound = errors.New("member not found")
	// ErrDepartmentNotFound 部门不存在
	ErrDepartmentNotFound = errors.New("department not found")
)

// Repository 账本数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx 返回绑定到指定事务的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// lockForUpdate 对查询追加行级排他锁
// SQLite 是单写者模型，不支持 FOR UPDATE，事务本身即可串行化写入
func (r *Repository) lockForUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// FindDepartment 按 ID 查找部门
func (r *Repository) FindDepartment(id uint) (*models.Department, error) {
	var department models.Department
	err := r.db.First(&department, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}
	return &department, nil
}

// CountMembersByDepartment 统计部门的在册成员数
func (r *Repository) CountMembersByDepartment(departmentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Member{}).Where("department_id = ?", departmentID).Count(&count).Error
	return count, err
}

// FindMembersByDepartment 查找部门的全部成员
func (r *Repository) FindMembersByDepartment(departmentID uint) ([]*models.Member, error) {
	var members []*models.Member
	err := r.db.Where("department_id = ?", departmentID).Order("id ASC").Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// FindMemberForUpdate 按 ID 查找成员并持有排他锁直到事务结束
func (r *Repository) FindMemberForUpdate(id uint) (*models.Member, error) {
	var member models.Member
	err := r.lockForUpdate(r.db).First(&member, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// CreateToken 创建代币发放记录
func (r *Repository) CreateToken(token *models.Token) error {
	return r.db.Create(token).Error
}

// FindTokenForUpdate 按 ID 查找发放记录并持有排他锁直到事务结束
func (r *Repository) FindTokenForUpdate(id uint) (*models.Token, error) {
	var token models.Token
	err := r.lockForUpdate(r.db).First(&token, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// FindTokensByDepartment 查找指定部门的发放记录，最新在前
func (r *Repository) FindTokensByDepartment(departmentID uint) ([]*models.Token, error) {
	var tokens []*models.Token
	err := r.db.Where("department_id = ?", departmentID).Order("created_at DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// FindAllTokens 查找全部发放记录，最新在前
func (r *Repository) FindAllTokens() ([]*models.Token, error) {
	var tokens []*models.Token
	err := r.db.Order("created_at DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// UpdateTokenRemain 更新发放记录的未分配余量
func (r *Repository) UpdateTokenRemain(token *models.Token) error {
	return r.db.Model(token).Update("remain_quantity", token.RemainQuantity).Error
}

// CreateUsage 创建成员代币份额
func (r *Repository) CreateUsage(usage *models.TokenUsage) error {
	return r.db.Create(usage).Error
}

// FindUsagesByMember 查找成员的全部份额，最旧在前
func (r *Repository) FindUsagesByMember(memberID uint) ([]*models.TokenUsage, error) {
	var usages []*models.TokenUsage
	err := r.db.Where("member_id = ?", memberID).
		Order("created_at ASC, id ASC").Find(&usages).Error
	if err != nil {
		return nil, err
	}
	return usages, nil
}

// FindUsagePage 按最旧优先取一页份额
// 扣减过程中被耗尽的份额会即时删除，因此每轮都从头取页，不做偏移
func (r *Repository) FindUsagePage(memberID uint, limit int) ([]*models.TokenUsage, error) {
	var usages []*models.TokenUsage
	err := r.lockForUpdate(r.db).Where("member_id = ?", memberID).
		Order("created_at ASC, id ASC").Limit(limit).Find(&usages).Error
	if err != nil {
		return nil, err
	}
	return usages, nil
}

// UpdateUsageQuantity 更新份额的剩余数量
func (r *Repository) UpdateUsageQuantity(usage *models.TokenUsage) error {
	return r.db.Model(usage).Update("quantity", usage.Quantity).Error
}

// DeleteUsage 删除已耗尽的份额
func (r *Repository) DeleteUsage(usage *models.TokenUsage) error {
	return r.db.Delete(usage).Error
}

// AddMemberQuantity 调整成员的缓存余额（delta 可为负）
func (r *Repository) AddMemberQuantity(memberID uint, delta int) error {
	return r.db.Model(&models.Member{}).Where("id = ?", memberID).
		Update("token_quantity", gorm.Expr("token_quantity + ?", delta)).Error
}

// CreateLog 追加一条审计日志
// 日志只追加，任何路径都不得更新或删除
func (r *Repository) CreateLog(entry *models.TokenLog) error {
	return r.db.Create(entry).Error
}
