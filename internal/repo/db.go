// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and category seeding.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs, tunes
// the pool, and registers the OpenTelemetry tracing plugin.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Ad{},
		&domain.AdPhoto{},
		&domain.ChannelMessage{},
		&domain.ProcessedUpdate{},
	)
}

// defaultCategories is the fixed section catalog of the board.
var defaultCategories = []domain.Category{
	{Title: "Жилье", Alias: "home"},
	{Title: "Работа", Alias: "work"},
	{Title: "Товары", Alias: "goods"},
	{Title: "Услуги", Alias: "services"},
}

// SeedCategories inserts the default category catalog if a category with the
// same alias is not already present. Safe to call on every startup.
func SeedCategories(db *gorm.DB) error {
	for _, c := range defaultCategories {
		var count int64
		if err := db.Model(&domain.Category{}).Where("alias = ?", c.Alias).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		c.ID = newID()
		if err := db.Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}
