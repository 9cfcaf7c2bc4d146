package db

import (
	"fmt"

	"github.com/dialflow/floorwatch/internal/models"
	"github.com/dialflow/floorwatch/internal/status"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the GORM models owned by the presence core.
func AllModels() []interface{} {
	return []interface{}{
		&models.AgentSession{},
		&models.StatusSlice{},
		&models.StatusRecord{},
	}
}

// AutoMigrate creates or updates the presence tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedStatusCatalog upserts the fixed status catalogue so reporting SQL has
// a join target for labels and categories. The catalogue in code remains
// the source of truth.
func SeedStatusCatalog(db *gorm.DB) error {
	for i, s := range status.All() {
		rec := models.StatusRecord{
			Code:     s.Code,
			Label:    s.Label,
			Category: string(s.Category),
			Ordinal:  i,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"label", "category", "ordinal"}),
		}).Create(&rec)
		if result.Error != nil {
			return fmt.Errorf("db: seed status %q: %w", s.Code, result.Error)
		}
	}
	return nil
}
