package testutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jbweber/homelab/shelf/internal/migrations"
	_ "modernc.org/sqlite"
)

// CleanupTestDB removes the database file behind dsn. In-memory databases
// have no file, so a missing file is not an error.
func CleanupTestDB(dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return fmt.Errorf("invalid DSN format")
	}
	if strings.Contains(dsn, "mode=memory") {
		return nil
	}

	path := dsn[len("file:"):]
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// OpenTestDB opens the database behind dsn and closes it when the test ends.
func OpenTestDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return db
}

// SetupTestDB creates and returns an in-memory test database connection
func SetupTestDB(t *testing.T, testName string) *sql.DB {
	t.Helper()
	return OpenTestDB(t, NewTestDSN(testName))
}

// SetupTestDBWithMigrations creates an in-memory test database with the books schema applied
func SetupTestDBWithMigrations(t *testing.T, testName string) *sql.DB {
	t.Helper()

	db := SetupTestDB(t, testName)
	if err := migrations.RunAll(context.Background(), db, nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
