package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Mieluoxxx/Lumina-API/internal/config"
	"github.com/Mieluoxxx/Lumina-API/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase 初始化数据库连接
// driver 为 sqlite（默认，文件库）或 postgres（生产部署）
func InitDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		// 确保数据目录存在
		dbDir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 SQL DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取 SQL DB 失败: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Printf("✅ 数据库连接成功: driver=%s", cfg.Driver)

	return db, nil
}

// AutoMigrate 自动迁移所有数据模型
func AutoMigrate(db *gorm.DB) error {
	log.Println("🔄 开始数据库迁移...")

	err := db.AutoMigrate(
		&models.Department{},
		&models.Member{},
		&models.Token{},
		&models.TokenUsage{},
		&models.TokenLog{},
	)

	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	log.Println("✅ 数据库迁移完成")
	log.Println("   - departments 表")
	log.Println("   - members 表")
	log.Println("   - tokens 表")
	log.Println("   - token_usages 表")
	log.Println("   - token_logs 表")

	return initDefaultData(db)
}

// initDefaultData 初始化默认数据
// 空库时建默认部门和总管理员账户，已有成员则跳过
func initDefaultData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Member{}).Count(&count).Error; err != nil {
		return fmt.Errorf("检查成员数据失败: %w", err)
	}
	if count > 0 {
		return nil
	}

	department := &models.Department{Name: "platform"}
	if err := db.Create(department).Error; err != nil {
		return fmt.Errorf("创建默认部门失败: %w", err)
	}

	admin := &models.Member{
		LoginID:      "admin",
		Name:         "Administrator",
		Role:         models.RoleSuperAdmin,
		DepartmentID: department.ID,
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("创建默认管理员失败: %w", err)
	}

	log.Println("✅ 默认数据初始化完成: platform 部门 + admin 账户")
	return nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取 SQL DB 失败: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("关闭数据库失败: %w", err)
	}

	log.Println("👋 数据库连接已关闭")
	return nil
}
