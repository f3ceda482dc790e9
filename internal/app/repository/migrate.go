package repository

import (
	"context"
	"fmt"

	"github.com/sifan077/TrackPoint/internal/app/model"
	"gorm.io/gorm"
)

var extraIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_clicks_tracking_gps ON clicks_tracking (latitude, longitude)",
	"CREATE INDEX IF NOT EXISTS idx_clicks_tracking_consent ON clicks_tracking (consent_given, clicked_at)",
}

// Migrate creates or updates both tables and their secondary indexes in one transaction.
func Migrate(ctx context.Context, store *Store) error {
	return store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&model.Registration{}, &model.ClickEvent{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		for _, stmt := range extraIndexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		return nil
	})
}
