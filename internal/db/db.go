package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/model"
)

var (
	// DB 全局数据库连接实例
	DB *gorm.DB
)

// Open 根据配置打开数据库连接，不修改全局实例
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBType {
	case "mysql":
		dialector = mysql.Open(cfg.GetDBConnString())
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", cfg.DBType)
	}

	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return conn, nil
}

// InitDB 初始化全局数据库连接并迁移全部模型
func InitDB(cfg *config.Config) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = conn

	if err := AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("迁移数据库失败: %w", err)
	}

	logger.L().Info("成功连接到数据库", zap.String("type", cfg.DBType))
	return nil
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.Role{},
		&model.User{},
		&model.Stat{},
		&model.PlayerSample{},
	}
}

// CloseDB 关闭数据库连接
func CloseDB() {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			logger.L().Warn("获取原生数据库连接失败", zap.Error(err))
			return
		}
		if err := sqlDB.Close(); err != nil {
			logger.L().Warn("关闭数据库连接失败", zap.Error(err))
		}
		DB = nil
	}
}

// AutoMigrate 自动迁移模型到数据库
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return DB.AutoMigrate(models...)
}
