package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string

	// numbered rewrites ? placeholders to $1, $2, ...
	numbered bool

	// lockClause is appended to a SELECT to lock the selected row for the
	// rest of the transaction.
	lockClause string

	isUniqueViolation func(err error) bool
}

// sqlStore holds the queries shared by the PostgreSQL and SQLite stores.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	log     logrus.FieldLogger
	db      *sql.DB
	dialect dialect
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const publisherColumns = `id, company_name, website_url, contact_email, contact_name, description,
	website_categories, estimated_monthly_traffic, integration_platform, preferred_task_types,
	api_key_hash, api_key_prefix, configuration, is_active, created_at, updated_at`

// rebind converts ? placeholders to the dialect's placeholder syntax.
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}

	var sb strings.Builder

	sb.Grow(len(query) + 16)

	n := 1

	for _, r := range query {
		if r == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))

			n++

			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

// classify maps driver errors onto store sentinels.
func (s *sqlStore) classify(err error) error {
	if err != nil && s.dialect.isUniqueViolation != nil && s.dialect.isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}

	return err
}

// Ping checks the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database not started")
	}

	return s.db.PingContext(ctx)
}

// Stop closes the database connection.
func (s *sqlStore) Stop() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func (s *sqlStore) runMigrations(ctx context.Context, migrations []string) error {
	s.log.Info("Running database migrations")

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}

	return nil
}

// ============================================================================
// Publishers
// ============================================================================

// CreatePublisher inserts a new publisher.
func (s *sqlStore) CreatePublisher(ctx context.Context, p *Publisher) error {
	categories, err := json.Marshal(nonNil(p.WebsiteCategories))
	if err != nil {
		return fmt.Errorf("marshaling website_categories: %w", err)
	}

	taskTypes, err := json.Marshal(nonNil(p.PreferredTaskTypes))
	if err != nil {
		return fmt.Errorf("marshaling preferred_task_types: %w", err)
	}

	configuration, err := json.Marshal(p.Configuration)
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO publishers (`+publisherColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), p.ID, p.CompanyName, p.WebsiteURL, p.ContactEmail, p.ContactName, p.Description,
		string(categories), p.EstimatedMonthlyTraffic, p.IntegrationPlatform, string(taskTypes),
		p.APIKeyHash, p.APIKeyPrefix, string(configuration), p.IsActive, p.CreatedAt, nullTime(p.UpdatedAt))

	if err != nil {
		return fmt.Errorf("inserting publisher: %w", s.classify(err))
	}

	return nil
}

// GetPublisher retrieves a publisher by ID.
func (s *sqlStore) GetPublisher(ctx context.Context, id string) (*Publisher, error) {
	return s.getPublisher(ctx, "id", id)
}

// GetPublisherByEmail retrieves a publisher by contact email.
func (s *sqlStore) GetPublisherByEmail(ctx context.Context, email string) (*Publisher, error) {
	return s.getPublisher(ctx, "contact_email", email)
}

// GetPublisherByAPIKeyHash retrieves the publisher holding the API key with the given hash.
func (s *sqlStore) GetPublisherByAPIKeyHash(ctx context.Context, hash string) (*Publisher, error) {
	return s.getPublisher(ctx, "api_key_hash", hash)
}

func (s *sqlStore) getPublisher(ctx context.Context, column, value string) (*Publisher, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+publisherColumns+` FROM publishers WHERE `+column+` = ?`), value)

	p, err := scanPublisher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying publisher: %w", err)
	}

	return p, nil
}

// ListPublishers returns a page of publishers ordered by creation time, and the total count.
func (s *sqlStore) ListPublishers(ctx context.Context, opts ListOpts) ([]*Publisher, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publishers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting publishers: %w", err)
	}

	query := `SELECT ` + publisherColumns + ` FROM publishers ORDER BY created_at, id`

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("querying publishers: %w", err)
	}

	defer rows.Close()

	publishers := make([]*Publisher, 0, opts.Limit)

	for rows.Next() {
		p, err := scanPublisher(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning publisher: %w", err)
		}

		publishers = append(publishers, p)
	}

	return publishers, total, rows.Err()
}

// UpdatePublisher applies mutate to the publisher while holding the row lock
// and persists its profile fields and active flag. The ID, API key and
// configuration are not touched.
func (s *sqlStore) UpdatePublisher(ctx context.Context, id string, mutate PublisherMutator) (*Publisher, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	p, err := scanPublisher(tx.QueryRowContext(ctx, s.rebind(
		`SELECT `+publisherColumns+` FROM publishers WHERE id = ?`+s.dialect.lockClause), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("querying publisher: %w", err)
	}

	if err := mutate(p); err != nil {
		return nil, err
	}

	categories, err := json.Marshal(nonNil(p.WebsiteCategories))
	if err != nil {
		return nil, fmt.Errorf("marshaling website_categories: %w", err)
	}

	taskTypes, err := json.Marshal(nonNil(p.PreferredTaskTypes))
	if err != nil {
		return nil, fmt.Errorf("marshaling preferred_task_types: %w", err)
	}

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE publishers SET company_name = ?, website_url = ?, contact_email = ?, contact_name = ?,
			description = ?, website_categories = ?, estimated_monthly_traffic = ?,
			integration_platform = ?, preferred_task_types = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`), p.CompanyName, p.WebsiteURL, p.ContactEmail, p.ContactName, p.Description,
		string(categories), p.EstimatedMonthlyTraffic, p.IntegrationPlatform, string(taskTypes),
		p.IsActive, now, id); err != nil {
		return nil, fmt.Errorf("updating publisher: %w", s.classify(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing publisher: %w", err)
	}

	p.UpdatedAt = &now

	return p, nil
}

// UpdateConfiguration applies mutate to the publisher's configuration while
// holding the row lock, persists the result and returns the updated publisher.
func (s *sqlStore) UpdateConfiguration(
	ctx context.Context, id string, mutate ConfigurationMutator,
) (*Publisher, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var raw string

	err = tx.QueryRowContext(ctx, s.rebind(
		`SELECT configuration FROM publishers WHERE id = ?`+s.dialect.lockClause), id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("querying configuration: %w", err)
	}

	current := Configuration{}

	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return nil, fmt.Errorf("unmarshaling configuration: %w", err)
		}
	}

	next, err := mutate(current)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshaling configuration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE publishers SET configuration = ?, updated_at = ? WHERE id = ?`),
		string(encoded), time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("updating configuration: %w", err)
	}

	p, err := scanPublisher(tx.QueryRowContext(ctx, s.rebind(
		`SELECT `+publisherColumns+` FROM publishers WHERE id = ?`), id))
	if err != nil {
		return nil, fmt.Errorf("reloading publisher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing configuration: %w", err)
	}

	return p, nil
}

// UpdateAPIKey replaces the stored key hash and display prefix.
func (s *sqlStore) UpdateAPIKey(ctx context.Context, id, hash, prefix string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE publishers SET api_key_hash = ?, api_key_prefix = ?, updated_at = ? WHERE id = ?
	`), hash, prefix, time.Now().UTC(), id)

	if err != nil {
		return fmt.Errorf("updating api key: %w", s.classify(err))
	}

	return expectAffected(res)
}

func scanPublisher(row rowScanner) (*Publisher, error) {
	var (
		p                                  Publisher
		categories, taskTypes, configJSON  string
		contactName, description, platform sql.NullString
		updatedAt                          sql.NullTime
	)

	if err := row.Scan(&p.ID, &p.CompanyName, &p.WebsiteURL, &p.ContactEmail, &contactName,
		&description, &categories, &p.EstimatedMonthlyTraffic, &platform, &taskTypes,
		&p.APIKeyHash, &p.APIKeyPrefix, &configJSON, &p.IsActive, &p.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}

	p.ContactName = contactName.String
	p.Description = description.String
	p.IntegrationPlatform = platform.String

	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}

	if err := unmarshalJSONColumn(categories, &p.WebsiteCategories); err != nil {
		return nil, fmt.Errorf("unmarshaling website_categories: %w", err)
	}

	if err := unmarshalJSONColumn(taskTypes, &p.PreferredTaskTypes); err != nil {
		return nil, fmt.Errorf("unmarshaling preferred_task_types: %w", err)
	}

	if err := unmarshalJSONColumn(configJSON, &p.Configuration); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if p.WebsiteCategories == nil {
		p.WebsiteCategories = []string{}
	}

	if p.PreferredTaskTypes == nil {
		p.PreferredTaskTypes = []string{}
	}

	if p.Configuration == nil {
		p.Configuration = Configuration{}
	}

	return &p, nil
}

// ============================================================================
// Webhooks
// ============================================================================

// CreateWebhook inserts a webhook registration.
func (s *sqlStore) CreateWebhook(ctx context.Context, w *Webhook) error {
	events, err := json.Marshal(nonNil(w.Events))
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO webhooks (id, publisher_id, endpoint_url, secret_key, events, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), w.ID, w.PublisherID, w.EndpointURL, w.SecretKey, string(events), w.Active, w.CreatedAt)

	if err != nil {
		return fmt.Errorf("inserting webhook: %w", s.classify(err))
	}

	return nil
}

// ListWebhooks retrieves the webhooks registered by a publisher.
func (s *sqlStore) ListWebhooks(ctx context.Context, publisherID string) ([]*Webhook, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, publisher_id, endpoint_url, secret_key, events, active, created_at
		FROM webhooks WHERE publisher_id = ? ORDER BY created_at
	`), publisherID)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}

	defer rows.Close()

	webhooks := make([]*Webhook, 0, 4)

	for rows.Next() {
		var (
			w      Webhook
			events string
		)

		if err := rows.Scan(&w.ID, &w.PublisherID, &w.EndpointURL, &w.SecretKey, &events,
			&w.Active, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}

		if err := unmarshalJSONColumn(events, &w.Events); err != nil {
			return nil, fmt.Errorf("unmarshaling events: %w", err)
		}

		webhooks = append(webhooks, &w)
	}

	return webhooks, rows.Err()
}

// ============================================================================
// Audit
// ============================================================================

// CreateAuditEntry creates a new audit log entry.
func (s *sqlStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO audit_log (id, action, publisher_id, actor, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.Action, entry.PublisherID, entry.Actor, entry.Details, entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// ListAuditEntries retrieves audit entries with filtering and pagination.
func (s *sqlStore) ListAuditEntries(
	ctx context.Context, opts AuditQueryOpts,
) ([]*AuditEntry, int, error) {
	var (
		where []string
		args  []any
	)

	if opts.PublisherID != nil {
		where = append(where, "publisher_id = ?")
		args = append(args, *opts.PublisherID)
	}

	if opts.Action != nil {
		where = append(where, "action = ?")
		args = append(args, *opts.Action)
	}

	if opts.Actor != nil {
		where = append(where, "actor = ?")
		args = append(args, *opts.Actor)
	}

	if opts.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *opts.Since)
	}

	if opts.Until != nil {
		where = append(where, "created_at <= ?")
		args = append(args, *opts.Until)
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM audit_log`+filter),
		args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, action, publisher_id, actor, details, created_at FROM audit_log` +
		filter + ` ORDER BY created_at DESC`

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit entries: %w", err)
	}

	defer rows.Close()

	entries := make([]*AuditEntry, 0, opts.Limit)

	for rows.Next() {
		var (
			entry          AuditEntry
			actor, details sql.NullString
		)

		if err := rows.Scan(&entry.ID, &entry.Action, &entry.PublisherID, &actor, &details,
			&entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.Actor = actor.String
		entry.Details = details.String

		entries = append(entries, &entry)
	}

	return entries, total, rows.Err()
}

// ============================================================================
// Helpers
// ============================================================================

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func unmarshalJSONColumn(raw string, dest any) error {
	if raw == "" {
		return nil
	}

	return json.Unmarshal([]byte(raw), dest)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}
