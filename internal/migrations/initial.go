package migrations

import (
	"database/sql"
)

// GetInitialMigrations returns all initial migrations
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_books_table",
			Up: func(tx *sql.Tx) error {
				// price is TEXT so decimal amounts round-trip exactly
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS books (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						title TEXT NOT NULL,
						author TEXT NOT NULL,
						price TEXT NOT NULL DEFAULT '0'
					)
				`)
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec(`DROP TABLE IF EXISTS books`)
				return err
			},
		},
	}
}
