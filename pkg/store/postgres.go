package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var postgresDialect = dialect{
	name:       "postgres",
	numbered:   true,
	lockClause: " FOR UPDATE",
	isUniqueViolation: func(err error) bool {
		var pqErr *pq.Error

		return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
	},
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	*sqlStore
	dsn string
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(log logrus.FieldLogger, dsn string) Store {
	return &PostgresStore{
		sqlStore: &sqlStore{
			log:     log.WithField("component", "store"),
			dialect: postgresDialect,
		},
		dsn: dsn,
	}
}

// Start opens the database connection.
func (s *PostgresStore) Start(ctx context.Context) error {
	s.log.Info("Opening PostgreSQL database")

	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return fmt.Errorf("pinging database: %w", err)
	}

	s.db = db

	return nil
}

// Migrate runs database migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.runMigrations(ctx, []string{
		// Publishers table.
		`CREATE TABLE IF NOT EXISTS publishers (
			id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			website_url TEXT NOT NULL,
			contact_email TEXT NOT NULL UNIQUE,
			contact_name TEXT,
			description TEXT,
			website_categories JSONB NOT NULL DEFAULT '[]',
			estimated_monthly_traffic BIGINT NOT NULL DEFAULT 0,
			integration_platform TEXT,
			preferred_task_types JSONB NOT NULL DEFAULT '[]',
			api_key_hash TEXT NOT NULL UNIQUE,
			api_key_prefix TEXT NOT NULL,
			configuration JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publishers_created ON publishers(created_at)`,
		// Webhooks table.
		`CREATE TABLE IF NOT EXISTS webhooks (
			id TEXT PRIMARY KEY,
			publisher_id TEXT NOT NULL REFERENCES publishers(id) ON DELETE CASCADE,
			endpoint_url TEXT NOT NULL,
			secret_key TEXT NOT NULL,
			events JSONB NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhooks_publisher ON webhooks(publisher_id)`,
		// Audit log table.
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			publisher_id TEXT NOT NULL,
			actor TEXT,
			details TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_publisher ON audit_log(publisher_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
	})
}
