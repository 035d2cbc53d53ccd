package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		firstname       TEXT NOT NULL,
		lastname        TEXT NOT NULL,
		contact_number  TEXT NOT NULL,
		email           TEXT NOT NULL,
		name            TEXT NOT NULL,
		date_registered TEXT NOT NULL,
		membership_type TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_members_name ON members (name)`,
	`CREATE INDEX IF NOT EXISTS idx_members_type ON members (membership_type)`,
	`CREATE TABLE IF NOT EXISTS operators (
		id            TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		is_disabled   INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	)`,
}

var schemaMySQL = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		firstname       VARCHAR(255) NOT NULL,
		lastname        VARCHAR(255) NOT NULL,
		contact_number  VARCHAR(64)  NOT NULL,
		email           VARCHAR(255) NOT NULL,
		name            VARCHAR(511) NOT NULL,
		date_registered VARCHAR(10)  NOT NULL,
		membership_type VARCHAR(32)  NOT NULL,
		INDEX idx_members_name (name),
		INDEX idx_members_type (membership_type)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS operators (
		id            VARCHAR(64)  NOT NULL PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(32)  NOT NULL,
		is_disabled   TINYINT      NOT NULL DEFAULT 0,
		created_at    VARCHAR(32)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate: 起動時にテーブルを用意する（存在すれば何もしない）
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts := schemaSQLite
	if driver == DriverMySQL {
		stmts = schemaMySQL
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
