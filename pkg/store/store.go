package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by mutating operations whose target row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflicts with an existing record")
)

// Store defines the interface for database operations.
//
// Getters return (nil, nil) when the record does not exist.
type Store interface {
	// Lifecycle.
	Start(ctx context.Context) error
	Stop() error
	Ping(ctx context.Context) error

	// Publishers.
	CreatePublisher(ctx context.Context, publisher *Publisher) error
	GetPublisher(ctx context.Context, id string) (*Publisher, error)
	GetPublisherByEmail(ctx context.Context, email string) (*Publisher, error)
	GetPublisherByAPIKeyHash(ctx context.Context, hash string) (*Publisher, error)
	ListPublishers(ctx context.Context, opts ListOpts) ([]*Publisher, int, error)
	UpdatePublisher(ctx context.Context, id string, mutate PublisherMutator) (*Publisher, error)
	UpdateConfiguration(ctx context.Context, id string, mutate ConfigurationMutator) (*Publisher, error)
	UpdateAPIKey(ctx context.Context, id, hash, prefix string) error

	// Webhooks.
	CreateWebhook(ctx context.Context, webhook *Webhook) error
	ListWebhooks(ctx context.Context, publisherID string) ([]*Webhook, error)

	// Audit.
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, opts AuditQueryOpts) ([]*AuditEntry, int, error)

	// Migrations.
	Migrate(ctx context.Context) error
}

// Configuration section names.
const (
	SectionAppearance      = "appearance"
	SectionBehavior        = "behavior"
	SectionTaskPreferences = "task_preferences"
	SectionRewards         = "rewards"
)

// Sections lists every configuration section in display order.
var Sections = []string{
	SectionAppearance,
	SectionBehavior,
	SectionTaskPreferences,
	SectionRewards,
}

// Configuration holds a publisher's display and behavior options keyed by
// section, then option name.
type Configuration map[string]map[string]any

// Clone returns a copy of the configuration down to the option maps.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))

	for section, options := range c {
		if options == nil {
			out[section] = nil

			continue
		}

		copied := make(map[string]any, len(options))
		for k, v := range options {
			copied[k] = v
		}

		out[section] = copied
	}

	return out
}

// ConfigurationMutator computes the new configuration from the current one.
// It runs while the publisher row is locked.
type ConfigurationMutator func(current Configuration) (Configuration, error)

// PublisherMutator changes a publisher's profile fields in place. It runs
// while the publisher row is locked.
type PublisherMutator func(current *Publisher) error

// Publisher is a registered content publisher.
type Publisher struct {
	ID                      string        `json:"id"`
	CompanyName             string        `json:"company_name"`
	WebsiteURL              string        `json:"website_url"`
	ContactEmail            string        `json:"contact_email"`
	ContactName             string        `json:"contact_name"`
	Description             string        `json:"description"`
	WebsiteCategories       []string      `json:"website_categories"`
	EstimatedMonthlyTraffic int64         `json:"estimated_monthly_traffic"`
	IntegrationPlatform     string        `json:"integration_platform"`
	PreferredTaskTypes      []string      `json:"preferred_task_types"`
	APIKey                  string        `json:"api_key,omitempty"`
	APIKeyHash              string        `json:"-"`
	APIKeyPrefix            string        `json:"api_key_prefix"`
	Configuration           Configuration `json:"configuration"`
	IsActive                bool          `json:"is_active"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               *time.Time    `json:"updated_at"`
}

// Webhook is a callback endpoint registered by a publisher.
type Webhook struct {
	ID          string    `json:"id"`
	PublisherID string    `json:"publisher_id"`
	EndpointURL string    `json:"endpoint_url"`
	SecretKey   string    `json:"-"`
	Events      []string  `json:"events"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListOpts contains pagination options.
type ListOpts struct {
	Limit  int
	Offset int
}

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	AuditActionPublisherRegistered  AuditAction = "publisher_registered"
	AuditActionPublisherUpdated     AuditAction = "publisher_updated"
	AuditActionConfigurationUpdated AuditAction = "configuration_updated"
	AuditActionAPIKeyRegenerated    AuditAction = "api_key_regenerated"
	AuditActionWebhookCreated       AuditAction = "webhook_created"
)

// AuditEntry represents an audit log entry.
type AuditEntry struct {
	ID          string      `json:"id"`
	Action      AuditAction `json:"action"`
	PublisherID string      `json:"publisher_id"`
	Actor       string      `json:"actor"`
	Details     string      `json:"details"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AuditQueryOpts contains options for querying audit entries.
type AuditQueryOpts struct {
	PublisherID *string
	Action      *AuditAction
	Actor       *string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}
