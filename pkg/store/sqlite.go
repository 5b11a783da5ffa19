package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var sqliteDialect = dialect{
	name: "sqlite",
	isUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error

		return errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	},
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	*sqlStore
	path string
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(log logrus.FieldLogger, path string) Store {
	return &SQLiteStore{
		sqlStore: &sqlStore{
			log:     log.WithField("component", "store"),
			dialect: sqliteDialect,
		},
		path: path,
	}
}

// Start opens the database connection.
//
// Write transactions are opened with BEGIN IMMEDIATE so a configuration
// read-modify-write holds the database write lock from its first read.
func (s *SQLiteStore) Start(ctx context.Context) error {
	s.log.WithField("path", s.path).Info("Opening SQLite database")

	db, err := sql.Open("sqlite3",
		s.path+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// Test connection.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return fmt.Errorf("pinging database: %w", err)
	}

	s.db = db

	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return s.runMigrations(ctx, []string{
		// Publishers table.
		`CREATE TABLE IF NOT EXISTS publishers (
			id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			website_url TEXT NOT NULL,
			contact_email TEXT NOT NULL UNIQUE,
			contact_name TEXT,
			description TEXT,
			website_categories TEXT NOT NULL DEFAULT '[]',
			estimated_monthly_traffic INTEGER NOT NULL DEFAULT 0,
			integration_platform TEXT,
			preferred_task_types TEXT NOT NULL DEFAULT '[]',
			api_key_hash TEXT NOT NULL UNIQUE,
			api_key_prefix TEXT NOT NULL,
			configuration TEXT NOT NULL DEFAULT '{}',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publishers_created ON publishers(created_at)`,
		// Webhooks table.
		`CREATE TABLE IF NOT EXISTS webhooks (
			id TEXT PRIMARY KEY,
			publisher_id TEXT NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
			endpoint_url TEXT NOT NULL,
			secret_key TEXT NOT NULL,
			events TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhooks_publisher ON webhooks(publisher_id)`,
		// Audit log table.
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			publisher_id TEXT NOT NULL,
			actor TEXT,
			details TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_publisher ON audit_log(publisher_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
	})
}
