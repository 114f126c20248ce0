package db

import (
	"fmt"

	"github.com/zulandar/productif/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model owned by the agent.
func AllModels() []interface{} {
	return []interface{}{
		&models.ConversationState{},
		&models.Contact{},
		&models.Exchange{},
	}
}

// AutoMigrate creates or updates all agent tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
