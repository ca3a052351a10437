package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/nourishnest/backend/internal/models"
)

// RunMigrations applies all pending migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202406010001_create_referral_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&models.ReferralCode{},
					&models.ReferralEvent{},
					&models.Credit{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("credits", "referral_events", "referral_codes")
			},
		},
		{
			// One redemption per referee, lifetime. The partial unique index
			// makes the already_used check atomic under concurrent checkouts.
			ID: "202406010002_unique_redemption_per_referee",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_events_one_redemption
					ON referral_events (referee_user_id) WHERE event_type = 'redeemed'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_referral_events_one_redemption`).Error
			},
		},
	})

	return m.Migrate()
}
