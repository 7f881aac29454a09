package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates the process-wide connection pool. Foreign keys are switched on for
// every pooled connection; callers beyond maxConns queue for a free connection.
func New(dataSourceName string, maxConns int) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", dataSourceName)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err = db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		gender TEXT NOT NULL,
		faculty TEXT NOT NULL,
		course INTEGER NOT NULL,
		specialty TEXT NOT NULL,
		district TEXT NOT NULL,
		address TEXT NOT NULL,
		rooms_count INTEGER NOT NULL,
		people_count INTEGER NOT NULL,
		price REAL NOT NULL,
		utilities_included BOOLEAN NOT NULL DEFAULT FALSE,
		additional_info TEXT,
		contact_phone TEXT NOT NULL,
		contact_telegram TEXT,
		contact_instagram TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);
	CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at);

	CREATE TABLE IF NOT EXISTS favorite_listings (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, listing_id)
	);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		jti TEXT NOT NULL PRIMARY KEY,
		expires_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
