package database

import (
	"fmt"
	"log"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens a Postgres connection. An empty url disables persistence and returns nil.
func Connect(url string) (*gorm.DB, error) {
	if url == "" {
		log.Println("⚠️  Database not configured (DATABASE_URL not set), run history disabled")
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("✅ Database connected")
	return db, nil
}

// Migrate creates or updates the run history tables
func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&models.CorpusSnapshot{},
		&models.GenerationRun{},
	)
}
