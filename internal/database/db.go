// Package database persists the per-outlet collections with jinzhu/gorm.
package database

import (
	"fmt"
	"strings"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"cafepos/internal/models"
)

// Options select the dialect and connection pool
type Options struct {
	Dialect      string
	DSN          string
	MaxOpenConns int
	LogSQL       bool
}

// Open connects to the database and migrates every model
func Open(opts Options) (*gorm.DB, error) {
	if opts.Dialect == "" {
		opts.Dialect = "sqlite3"
	}
	db, err := gorm.Open(opts.Dialect, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Dialect, err)
	}

	maxOpen := opts.MaxOpenConns
	if opts.Dialect == "sqlite3" && strings.Contains(opts.DSN, ":memory:") {
		// every connection to :memory: is a separate database
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.DB().SetMaxOpenConns(maxOpen)
	}
	db.LogMode(opts.LogSQL)

	if err := AutoMigrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the tables of every persisted model
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Outlet{},
		&models.Settings{},
		&models.MenuCategory{},
		&models.MenuItem{},
		&models.Ingredient{},
		&models.StockMovement{},
		&models.Table{},
		&models.OrderRecord{},
		&models.OrderCounter{},
	).Error
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
