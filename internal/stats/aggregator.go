package stats

import (
	"errors"
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"gorm.io/gorm"
)

// ErrUnknownCriterion 未知的排名维度，属于调用方错误
var ErrUnknownCriterion = errors.New("unknown ranking criterion")

// 排名维度常量
const (
	CriterionImage = "image" // 产出图片数
	CriterionTool  = "tool"  // 工具使用次数（按工具分组）
	CriterionModel = "model" // 模型使用次数（按模型分组）
	CriterionToken = "token" // 消费代币总量
)

// Aggregator 审计日志只读聚合器
// 所有查询只读 token_logs（及成员名连接），从不写入；
// 空日志返回空切片而不是错误
type Aggregator struct {
	db *gorm.DB
}

// NewAggregator 创建 Aggregator 实例
func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// RankEntry 一条排名记录
type RankEntry struct {
	Rank       int    `json:"rank"`
	MemberID   uint   `json:"member_id"`
	MemberName string `json:"member_name"`
	Quantity   int    `json:"quantity"`
}

// GroupedRank 按分组维度（工具名 / 模型名）组织的排名
type GroupedRank map[string][]RankEntry

// Rank 按维度分发排名查询
// image/token 返回全局排名切片，tool/model 返回按组划分的排名
func (a *Aggregator) Rank(criterion string) (interface{}, error) {
	switch criterion {
	case CriterionImage:
		return a.RankByImages()
	case CriterionTool:
		return a.RankByTools()
	case CriterionModel:
		return a.RankByModels()
	case CriterionToken:
		return a.RankByTokens()
	default:
		return nil, ErrUnknownCriterion
	}
}

// RankByImages 按产出图片总数的全局成员排名
func (a *Aggregator) RankByImages() ([]RankEntry, error) {
	entries := make([]RankEntry, 0)
	err := a.db.Raw(`
		SELECT RANK() OVER (ORDER BY SUM(l.image_quantity) DESC) AS rank,
		       l.member_id, m.name AS member_name,
		       SUM(l.image_quantity) AS quantity
		FROM token_logs l
		JOIN members m ON m.id = l.member_id
		WHERE l.log_type = ? AND l.image_quantity IS NOT NULL
		GROUP BY l.member_id, m.name
		ORDER BY rank ASC, l.member_id ASC`,
		models.LogTypeUse).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RankByTokens 按消费代币总量的全局成员排名
func (a *Aggregator) RankByTokens() ([]RankEntry, error) {
	entries := make([]RankEntry, 0)
	err := a.db.Raw(`
		SELECT RANK() OVER (ORDER BY SUM(l.quantity) DESC) AS rank,
		       l.member_id, m.name AS member_name,
		       SUM(l.quantity) AS quantity
		FROM token_logs l
		JOIN members m ON m.id = l.member_id
		WHERE l.log_type = ?
		GROUP BY l.member_id, m.name
		ORDER BY rank ASC, l.member_id ASC`,
		models.LogTypeUse).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// groupedRankRow 分组排名的扫描行
type groupedRankRow struct {
	GroupKey   string `json:"group_key"`
	Rank       int    `json:"rank"`
	MemberID   uint   `json:"member_id"`
	MemberName string `json:"member_name"`
	Quantity   int    `json:"quantity"`
}

// RankByTools 按工具分组的成员使用次数排名
func (a *Aggregator) RankByTools() (GroupedRank, error) {
	rows := make([]groupedRankRow, 0)
	err := a.db.Raw(`
		SELECT l.use_type AS group_key,
		       RANK() OVER (PARTITION BY l.use_type ORDER BY COUNT(*) DESC) AS rank,
		       l.member_id, m.name AS member_name,
		       COUNT(*) AS quantity
		FROM token_logs l
		JOIN members m ON m.id = l.member_id
		WHERE l.log_type = ? AND l.use_type IS NOT NULL
		GROUP BY l.use_type, l.member_id, m.name
		ORDER BY l.use_type ASC, rank ASC, l.member_id ASC`,
		models.LogTypeUse).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return groupRows(rows), nil
}

// RankByModels 按模型分组的成员使用次数排名
func (a *Aggregator) RankByModels() (GroupedRank, error) {
	rows := make([]groupedRankRow, 0)
	err := a.db.Raw(`
		SELECT l.model AS group_key,
		       RANK() OVER (PARTITION BY l.model ORDER BY COUNT(*) DESC) AS rank,
		       l.member_id, m.name AS member_name,
		       COUNT(*) AS quantity
		FROM token_logs l
		JOIN members m ON m.id = l.member_id
		WHERE l.log_type = ? AND l.model IS NOT NULL
		GROUP BY l.model, l.member_id, m.name
		ORDER BY l.model ASC, rank ASC, l.member_id ASC`,
		models.LogTypeUse).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return groupRows(rows), nil
}

// groupRows 把扫描行按分组键组织成 GroupedRank
func groupRows(rows []groupedRankRow) GroupedRank {
	grouped := make(GroupedRank)
	for _, row := range rows {
		grouped[row.GroupKey] = append(grouped[row.GroupKey], RankEntry{
			Rank:       row.Rank,
			MemberID:   row.MemberID,
			MemberName: row.MemberName,
			Quantity:   row.Quantity,
		})
	}
	return grouped
}

// DailyImages 成员某天的产出图片数
type DailyImages struct {
	CreateDate    string `json:"create_date"`
	ImageQuantity int    `json:"image_quantity"`
}

// DailyImagesByMember 成员按天聚合的产出图片数，按日期升序
func (a *Aggregator) DailyImagesByMember(memberID uint) ([]DailyImages, error) {
	rows := make([]DailyImages, 0)
	err := a.db.Raw(`
		SELECT DATE(created_at) AS create_date,
		       SUM(image_quantity) AS image_quantity
		FROM token_logs
		WHERE log_type = ? AND member_id = ? AND image_quantity IS NOT NULL
		GROUP BY DATE(created_at)
		ORDER BY create_date ASC`,
		models.LogTypeUse, memberID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ToolUsage 成员对单个工具的累计使用次数
type ToolUsage struct {
	UseType string `json:"use_type"`
	Usage   int    `json:"usage"`
}

// ToolUsageByMember 成员按工具聚合的使用次数
func (a *Aggregator) ToolUsageByMember(memberID uint) ([]ToolUsage, error) {
	rows := make([]ToolUsage, 0)
	err := a.db.Raw(`
		SELECT use_type, COUNT(*) AS usage
		FROM token_logs
		WHERE log_type = ? AND member_id = ? AND use_type IS NOT NULL
		GROUP BY use_type
		ORDER BY usage DESC`,
		models.LogTypeUse, memberID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ModelUsage 成员对单个模型的累计使用次数
type ModelUsage struct {
	Model string `json:"model"`
	Usage int    `json:"usage"`
}

// ModelUsageByMember 成员按模型聚合的使用次数
func (a *Aggregator) ModelUsageByMember(memberID uint) ([]ModelUsage, error) {
	rows := make([]ModelUsage, 0)
	err := a.db.Raw(`
		SELECT model, COUNT(*) AS usage
		FROM token_logs
		WHERE log_type = ? AND member_id = ? AND model IS NOT NULL
		GROUP BY model
		ORDER BY usage DESC`,
		models.LogTypeUse, memberID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TokenUsageRow 成员某天在某工具上的代币消费量
type TokenUsageRow struct {
	UsageDate     string `json:"usage_date"`
	UseType       string `json:"use_type"`
	TokenQuantity int    `json:"token_quantity"`
}

// TokenUsageByMember 成员按天、按工具聚合的代币消费，支持可选日期范围
func (a *Aggregator) TokenUsageByMember(memberID uint, startDate, endDate *time.Time) ([]TokenUsageRow, error) {
	query := a.db.Model(&models.TokenLog{}).
		Select("DATE(created_at) AS usage_date, use_type, SUM(quantity) AS token_quantity").
		Where("log_type = ? AND member_id = ? AND use_type IS NOT NULL", models.LogTypeUse, memberID)

	if startDate != nil {
		query = query.Where("created_at >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("created_at <= ?", *endDate)
	}

	rows := make([]TokenUsageRow, 0)
	err := query.Group("DATE(created_at), use_type").
		Order("usage_date ASC").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
