//go:build postgres

package service

import (
	"fmt"
	"os"
	"testing"
	"time"

	"garmentflow/internal/database"

	"gorm.io/driver/postgres"
)

// GARMENTFLOW_TEST_DSN is a key/value DSN, e.g.
// "host=localhost user=postgres password=postgres dbname=garmentflow_test sslmode=disable"
func TestConcurrentAssignNextOnPostgres(t *testing.T) {
	dsn := os.Getenv("GARMENTFLOW_TEST_DSN")
	if dsn == "" {
		t.Skip("GARMENTFLOW_TEST_DSN not set")
	}

	admin, err := database.Open(postgres.Open(dsn))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	schema := fmt.Sprintf("gf_test_%d", time.Now().UnixNano())
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		admin.Exec("DROP SCHEMA " + schema + " CASCADE")
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	db, err := database.Open(postgres.Open(dsn + " search_path=" + schema))
	if err != nil {
		t.Fatalf("connect to schema: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	expectSingleAssignment(t, newTestEnvOn(db), 12)
}
