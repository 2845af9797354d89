package database

import (
	"firmsync/internal/models"
	"firmsync/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.Tenant{},
		// OAuth集成同步
		&models.Integration{},
		&models.OAuthToken{},
		&models.SyncLog{},
		&models.AuditLog{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	return nil
}
