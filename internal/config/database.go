package config

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
)

// connectionPragmas must hold on every pooled connection, so they travel in the DSN
var connectionPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)", // Wait for the writer instead of failing with SQLITE_BUSY
	"synchronous(NORMAL)",
}

// databasePragmas persist in the database file and only need to run once
var databasePragmas = []string{
	"PRAGMA journal_mode = WAL", // Readers do not block the single writer
	"PRAGMA optimize",
}

// SQLiteDSN returns the modernc sqlite DSN for the database file at path
func SQLiteDSN(path string) string {
	params := url.Values{}
	for _, p := range connectionPragmas {
		params.Add("_pragma", p)
	}
	return "file:" + path + "?" + params.Encode()
}

// OptimizeDatabaseConnection applies the configured pool limits to db
func OptimizeDatabaseConnection(db *sql.DB, cfg DatabaseConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// ApplyPragmaOptimizations applies SQLite-specific performance pragmas
func ApplyPragmaOptimizations(ctx context.Context, db *sql.DB) error {
	for _, pragma := range databasePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}
