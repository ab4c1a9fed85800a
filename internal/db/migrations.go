package db

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: catalog tables
		{
			ID: "001_catalog_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Song{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&Lyrics{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ThemeMapping{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("songs", "lyrics", "theme_mappings")
			},
		},

		// Migration 002: usage ledger
		{
			ID: "002_song_usage",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SongUsage{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("song_usage")
			},
		},

		// Migration 003: feedback and message logs
		{
			ID: "003_interaction_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&UserFeedback{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&MessageLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("user_feedback", "message_logs")
			},
		},
	})

	return m.Migrate()
}
