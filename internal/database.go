package internal

import (
	"fmt"

	"certforge/internal/config"
	"certforge/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitDB opens the MySQL connection and migrates the engine's tables. The
// unique indexes on certificates (codes, event+registration) are part of the
// engine's correctness model, not just storage hygiene: they serialize
// cross-batch collisions at the database.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	fmt.Println("Database connected and migrated successfully")
	return db, nil
}

// Migrate creates or updates the schema. Shared with tests, which run it
// against an in-process SQLite database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Event{},
		&models.Registration{},
		&models.CertificateTemplate{},
		&models.Certificate{},
		&models.ActivityLog{},
	)
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
