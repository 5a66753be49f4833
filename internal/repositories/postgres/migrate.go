package postgres

import (
	"fmt"

	"github.com/SAP-F-2025/cat-service/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the item bank and session tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Item{},
		&models.Session{},
		&models.Response{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
