package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"room-webhooks/internal/domain"
)

// MigrateDB 迁移审计表结构。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.AuditRecord{}); err != nil {
		return fmt.Errorf("failed to migrate audit_records table: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
