package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/tutorcore/pkg/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = models.ErrNotFound

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Connect opens the database and creates missing tables
func Connect(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver == DriverSQLite && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates necessary tables if they don't exist
func InitSchema(db *sqlx.DB) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"users table", `
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				username TEXT NOT NULL DEFAULT '',
				cefr_level TEXT NOT NULL DEFAULT 'A0',
				cefr_sub_level INTEGER NOT NULL DEFAULT 1,
				notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				notification_hour INTEGER NOT NULL DEFAULT 9,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`},
		{"words table", `
			CREATE TABLE IF NOT EXISTS words (
				id ` + serial + `,
				text TEXT NOT NULL UNIQUE,
				translation TEXT NOT NULL DEFAULT '',
				topic TEXT NOT NULL DEFAULT '',
				cefr_level TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			)`},
		{"grammar_rules table", `
			CREATE TABLE IF NOT EXISTS grammar_rules (
				id ` + serial + `,
				title TEXT NOT NULL UNIQUE,
				category TEXT NOT NULL DEFAULT '',
				cefr_level TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			)`},
		{"knowledge_items table", `
			CREATE TABLE IF NOT EXISTS knowledge_items (
				id TEXT PRIMARY KEY,
				user_id BIGINT NOT NULL,
				kind TEXT NOT NULL,
				subject_id BIGINT NOT NULL,
				knowledge_level INTEGER NOT NULL DEFAULT 0,
				times_seen INTEGER NOT NULL DEFAULT 0,
				times_correct INTEGER NOT NULL DEFAULT 0,
				times_incorrect INTEGER NOT NULL DEFAULT 0,
				last_reviewed_at TIMESTAMP,
				next_review_at TIMESTAMP,
				interval_days REAL NOT NULL DEFAULT 0,
				ease_factor REAL NOT NULL DEFAULT 2.5,
				recent_qualities TEXT NOT NULL DEFAULT '[]',
				contexts TEXT NOT NULL DEFAULT '[]',
				mistakes TEXT NOT NULL DEFAULT '[]',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				UNIQUE(user_id, kind, subject_id)
			)`},
		{"due items index", `
			CREATE INDEX IF NOT EXISTS idx_knowledge_items_due
			ON knowledge_items (user_id, kind, next_review_at)`},
		{"pronunciation_attempts table", `
			CREATE TABLE IF NOT EXISTS pronunciation_attempts (
				id ` + serial + `,
				user_id BIGINT NOT NULL,
				sound TEXT NOT NULL,
				intelligibility REAL NOT NULL DEFAULT 0,
				segmental_accuracy REAL NOT NULL DEFAULT 0,
				stress_correct BOOLEAN NOT NULL DEFAULT FALSE,
				intonation REAL NOT NULL DEFAULT 0,
				fluency REAL NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL
			)`},
		{"sessions table", `
			CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id BIGINT NOT NULL,
				strategy TEXT NOT NULL,
				started_at TIMESTAMP NOT NULL,
				ended_at TIMESTAMP NOT NULL,
				items_reviewed INTEGER NOT NULL DEFAULT 0,
				correct_count INTEGER NOT NULL DEFAULT 0
			)`},
		{"book_progress table", `
			CREATE TABLE IF NOT EXISTS book_progress (
				user_id BIGINT NOT NULL,
				book_id BIGINT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				current_chapter INTEGER NOT NULL DEFAULT 0,
				total_chapters INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (user_id, book_id)
			)`},
	}

	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}
