package database

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-sysdash/internal/models"
)

// Open 打开 SQLite 数据库，迁移表结构，并在没有管理员时创建默认管理员。
// dbPath 可以是 ":memory:"，测试时使用
func Open(dbPath, adminPassword string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Silent 模式下 gorm 不输出日志，错误由调用方记录
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, err
	}

	if err := createDefaultAdmin(db, adminPassword, log); err != nil {
		return nil, err
	}

	return db, nil
}

// migrateDB 自动迁移数据库表结构。快照只保存在内存中，不落库
func migrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Alarm{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// createDefaultAdmin 创建默认管理员账户
func createDefaultAdmin(db *gorm.DB, password string, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return errors.New("没有管理员账户且未配置 database.admin_password")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}

	admin := models.User{
		Username: "admin",
		Password: string(passwordHash),
		Email:    "admin@example.com",
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("创建默认管理员账户失败: %w", err)
	}

	log.Warn("created default admin account, change the password after first login",
		zap.String("username", admin.Username))
	return nil
}

// Close 关闭底层连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
