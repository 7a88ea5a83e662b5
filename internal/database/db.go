package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"garmentflow/internal/config"
	"garmentflow/internal/logger"
	"garmentflow/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the configured database and migrates the schema
func NewConnection(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := Open(dialector)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		logger.Get().WithError(err).Warn("failed to auto-migrate models")
	}

	return db, nil
}

// Open connects with the settings shared by every driver
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger.Get(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.AuditLog{},
		&model.Buyer{},
		&model.Style{},
		&model.Order{},
		&model.SizeBreakdown{},
		&model.ProcessStep{},
		&model.ProcessTransition{},
		&model.TransferLog{},
		&model.TransferItem{},
		&model.RejectLog{},
		&model.Material{},
		&model.Accessory{},
		&model.MaterialStockTransaction{},
		&model.AccessoryStockTransaction{},
		&model.OrderMaterial{},
		&model.OrderAccessory{},
	)
}
