// Package sqlite opens the embedded SQLite store used with DB_DRIVER=sqlite
// and by the repository tests.
package sqlite

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database at path and migrates the given models.
// SQLite allows a single writer, so the pool is capped at one connection.
func Open(path string, models ...any) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("could not migrate sqlite: %w", err)
		}
	}

	log.WithField("path", path).Info("SQLite database ready")
	return db, nil
}

// Memory opens a private in-memory database. Every call gets its own
// database named after name.
func Memory(name string, models ...any) (*gorm.DB, error) {
	return Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), models...)
}
