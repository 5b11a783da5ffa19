// Package publisher implements publisher registration, profile and
// configuration management, key rotation, webhooks, integration snippets
// and activity statistics.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/auth"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/stats"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/hotlabel/publishers/pkg/tasks"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPageSize is used when a listing does not ask for a page size.
	DefaultPageSize = 50

	// MaxPageSize bounds listing page sizes.
	MaxPageSize = 100

	// ActorInternal identifies trusted internal callers in the audit log.
	ActorInternal = "internal"

	taskStatusCompleted = "COMPLETED"
)

// Event stream notification types.
const (
	NotifyConfigurationUpdated = "configuration_updated"
	NotifyAPIKeyRegenerated    = "api_key_regenerated"
	NotifyTaskStatusUpdated    = "task_status_updated"
)

// Notifier delivers change notifications to a publisher's open event streams.
type Notifier interface {
	Notify(publisherID, eventType string, payload any)

	// Disconnect closes every event stream of the publisher.
	Disconnect(publisherID string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, any) {}
func (nopNotifier) Disconnect(string)          {}

// Service manages publishers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*store.Publisher, error)
	Get(ctx context.Context, id string) (*store.Publisher, error)
	List(ctx context.Context, opts store.ListOpts) ([]*store.Publisher, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*store.Publisher, error)
	UpdateConfiguration(ctx context.Context, id string, update ConfigurationUpdate) (*store.Publisher, error)

	// RegenerateAPIKey replaces the publisher's key. The returned record is
	// the only place the new raw key is ever exposed.
	RegenerateAPIKey(ctx context.Context, id string) (*store.Publisher, error)

	CreateWebhook(ctx context.Context, id string, req WebhookRequest) (*store.Webhook, error)
	ListWebhooks(ctx context.Context, id string) ([]*store.Webhook, error)
	IntegrationCode(publisher *store.Publisher, apiKey, platform string, includeComments bool) (*IntegrationCode, error)
	Statistics(ctx context.Context, id string, q StatisticsQuery) (*Statistics, error)
	Audit(ctx context.Context, id string, opts store.ListOpts) ([]*store.AuditEntry, int, error)

	// ListTasks returns available tasks for the publisher. It degrades to an
	// empty list when the task service is unavailable.
	ListTasks(ctx context.Context, id string, q tasks.ListQuery) tasks.TaskList
	UpdateTaskStatus(ctx context.Context, id, taskID, status string) (*tasks.Task, error)
}

// service implements Service.
type service struct {
	log      logrus.FieldLogger
	cfg      *config.Config
	store    store.Store
	recorder stats.Recorder
	tasks    tasks.Proxy
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
}

// Ensure service implements Service.
var _ Service = (*service)(nil)

// NewService creates a publisher service. A nil notifier disables event
// stream notifications.
func NewService(
	log logrus.FieldLogger,
	cfg *config.Config,
	st store.Store,
	recorder stats.Recorder,
	proxy tasks.Proxy,
	m *metrics.Metrics,
	notifier Notifier,
) Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &service{
		log:      log.WithField("component", "publisher"),
		cfg:      cfg,
		store:    st,
		recorder: recorder,
		tasks:    proxy,
		metrics:  m,
		notifier: notifier,
		now:      time.Now,
	}
}

// Register validates and stores a new publisher with a fresh API key.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*store.Publisher, error) {
	req.ContactEmail = normalizeEmail(req.ContactEmail)

	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	existing, err := s.store.GetPublisherByEmail(ctx, req.ContactEmail)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("checking contact email: %w", err))
	}

	if existing != nil {
		return nil, duplicateEmail()
	}

	key, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, apierr.Internal(err)
	}

	p := &store.Publisher{
		ID:                      uuid.New().String(),
		CompanyName:             strings.TrimSpace(req.CompanyName),
		WebsiteURL:              req.WebsiteURL,
		ContactEmail:            req.ContactEmail,
		ContactName:             strings.TrimSpace(req.ContactName),
		Description:             req.Description,
		WebsiteCategories:       nonNil(req.WebsiteCategories),
		EstimatedMonthlyTraffic: req.EstimatedMonthlyTraffic,
		IntegrationPlatform:     req.IntegrationPlatform,
		PreferredTaskTypes:      nonNil(req.PreferredTaskTypes),
		APIKeyHash:              hash,
		APIKeyPrefix:            prefix,
		Configuration:           DefaultConfiguration(req.PreferredTaskTypes),
		IsActive:                true,
		CreatedAt:               s.now().UTC(),
	}

	if err := s.store.CreatePublisher(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, duplicateEmail()
		}

		return nil, apierr.Internal(fmt.Errorf("creating publisher: %w", err))
	}

	p.APIKey = key

	s.audit(ctx, store.AuditActionPublisherRegistered, p.ID, p.ID, map[string]any{
		"company_name":  p.CompanyName,
		"contact_email": p.ContactEmail,
	})

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}

	s.log.WithFields(logrus.Fields{
		"publisher_id": p.ID,
		"company":      p.CompanyName,
	}).Info("Registered publisher")

	return p, nil
}

// Get returns a publisher by id.
func (s *service) Get(ctx context.Context, id string) (*store.Publisher, error) {
	p, err := s.store.GetPublisher(ctx, id)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("getting publisher: %w", err))
	}

	if p == nil {
		return nil, apierr.NotFound("Publisher", id)
	}

	return p, nil
}

// List returns a page of publishers and the total count.
func (s *service) List(ctx context.Context, opts store.ListOpts) ([]*store.Publisher, int, error) {
	publishers, total, err := s.store.ListPublishers(ctx, clampPage(opts))
	if err != nil {
		return nil, 0, apierr.Internal(fmt.Errorf("listing publishers: %w", err))
	}

	return publishers, total, nil
}

// Update applies a partial profile change. Only the provided fields are
// written over the locked row, so concurrent updates of different fields
// all survive.
func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*store.Publisher, error) {
	if req.ContactEmail != nil {
		email := normalizeEmail(*req.ContactEmail)
		req.ContactEmail = &email
	}

	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	if req.Empty() {
		return s.Get(ctx, id)
	}

	if req.ContactEmail != nil {
		other, err := s.store.GetPublisherByEmail(ctx, *req.ContactEmail)
		if err != nil {
			return nil, apierr.Internal(fmt.Errorf("checking contact email: %w", err))
		}

		if other != nil && other.ID != id {
			return nil, duplicateEmail()
		}
	}

	var changed []string

	p, err := s.store.UpdatePublisher(ctx, id, func(p *store.Publisher) error {
		changed = applyUpdate(p, req)

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, apierr.NotFound("Publisher", id)
		case errors.Is(err, store.ErrConflict):
			return nil, duplicateEmail()
		default:
			return nil, apierr.Internal(fmt.Errorf("updating publisher: %w", err))
		}
	}

	s.audit(ctx, store.AuditActionPublisherUpdated, p.ID, actorFromContext(ctx), map[string]any{
		"fields": changed,
	})

	if s.metrics != nil {
		s.metrics.RecordProfileUpdate()
	}

	return p, nil
}

// applyUpdate copies the provided fields onto p and returns their names.
func applyUpdate(p *store.Publisher, req UpdateRequest) []string {
	changed := make([]string, 0, 10)

	if req.ContactEmail != nil && *req.ContactEmail != p.ContactEmail {
		p.ContactEmail = *req.ContactEmail
		changed = append(changed, "contact_email")
	}

	if req.CompanyName != nil {
		p.CompanyName = strings.TrimSpace(*req.CompanyName)
		changed = append(changed, "company_name")
	}

	if req.WebsiteURL != nil {
		p.WebsiteURL = *req.WebsiteURL
		changed = append(changed, "website_url")
	}

	if req.ContactName != nil {
		p.ContactName = strings.TrimSpace(*req.ContactName)
		changed = append(changed, "contact_name")
	}

	if req.Description != nil {
		p.Description = *req.Description
		changed = append(changed, "description")
	}

	if req.WebsiteCategories != nil {
		p.WebsiteCategories = nonNil(*req.WebsiteCategories)
		changed = append(changed, "website_categories")
	}

	if req.EstimatedMonthlyTraffic != nil {
		p.EstimatedMonthlyTraffic = *req.EstimatedMonthlyTraffic
		changed = append(changed, "estimated_monthly_traffic")
	}

	if req.IntegrationPlatform != nil {
		p.IntegrationPlatform = *req.IntegrationPlatform
		changed = append(changed, "integration_platform")
	}

	if req.PreferredTaskTypes != nil {
		p.PreferredTaskTypes = nonNil(*req.PreferredTaskTypes)
		changed = append(changed, "preferred_task_types")
	}

	if req.IsActive != nil {
		p.IsActive = *req.IsActive
		changed = append(changed, "is_active")
	}

	return changed
}

// UpdateConfiguration merges a sparse configuration update into the stored
// configuration while the publisher row is locked.
func (s *service) UpdateConfiguration(ctx context.Context, id string, update ConfigurationUpdate) (*store.Publisher, error) {
	p, err := s.store.UpdateConfiguration(ctx, id, mergeWith(update))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.NotFound("Publisher", id)
		}

		return nil, apierr.Internal(fmt.Errorf("updating configuration: %w", err))
	}

	sections := make([]string, 0, len(store.Sections))
	for _, section := range store.Sections {
		if _, ok := update.sections()[section]; ok {
			sections = append(sections, section)
		}
	}

	s.audit(ctx, store.AuditActionConfigurationUpdated, p.ID, actorFromContext(ctx), map[string]any{
		"sections": sections,
	})

	if s.metrics != nil {
		s.metrics.RecordConfigUpdate()
	}

	s.notifier.Notify(p.ID, NotifyConfigurationUpdated, map[string]any{
		"configuration": p.Configuration,
		"updated_at":    p.UpdatedAt,
	})

	return p, nil
}

// RegenerateAPIKey issues a new key. The previous key stops authenticating
// as soon as the hash is replaced.
func (s *service) RegenerateAPIKey(ctx context.Context, id string) (*store.Publisher, error) {
	key, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, apierr.Internal(err)
	}

	if err := s.store.UpdateAPIKey(ctx, id, hash, prefix); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.NotFound("Publisher", id)
		}

		return nil, apierr.Internal(fmt.Errorf("rotating api key: %w", err))
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p.APIKey = key

	s.audit(ctx, store.AuditActionAPIKeyRegenerated, p.ID, actorFromContext(ctx), map[string]any{
		"api_key_prefix": prefix,
	})

	if s.metrics != nil {
		s.metrics.RecordKeyRotation()
	}

	s.notifier.Notify(p.ID, NotifyAPIKeyRegenerated, map[string]any{"api_key_prefix": prefix})
	s.notifier.Disconnect(p.ID)

	s.log.WithField("publisher_id", p.ID).Info("Regenerated API key")

	return p, nil
}

// CreateWebhook registers a webhook endpoint for the publisher.
func (s *service) CreateWebhook(ctx context.Context, id string, req WebhookRequest) (*store.Webhook, error) {
	if err := validationError(req.Validate()); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	webhook := &store.Webhook{
		ID:          uuid.New().String(),
		PublisherID: id,
		EndpointURL: req.EndpointURL,
		SecretKey:   req.SecretKey,
		Events:      dedupe(req.Events),
		Active:      active,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.CreateWebhook(ctx, webhook); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apierr.Conflict("A webhook with this endpoint is already registered")
		}

		return nil, apierr.Internal(fmt.Errorf("creating webhook: %w", err))
	}

	s.audit(ctx, store.AuditActionWebhookCreated, id, actorFromContext(ctx), map[string]any{
		"webhook_id":   webhook.ID,
		"endpoint_url": webhook.EndpointURL,
		"events":       webhook.Events,
	})

	if s.metrics != nil {
		s.metrics.RecordWebhookCreated()
	}

	return webhook, nil
}

// ListWebhooks returns the publisher's webhooks.
func (s *service) ListWebhooks(ctx context.Context, id string) ([]*store.Webhook, error) {
	webhooks, err := s.store.ListWebhooks(ctx, id)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("listing webhooks: %w", err))
	}

	if webhooks == nil {
		webhooks = []*store.Webhook{}
	}

	return webhooks, nil
}

// IntegrationCode renders the embeddable snippets for a platform.
func (s *service) IntegrationCode(p *store.Publisher, apiKey, platform string, includeComments bool) (*IntegrationCode, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform != "" && !ValidPlatform(platform) {
		return nil, apierr.Validation("Unsupported integration platform", map[string]string{
			"platform": "must be one of " + strings.Join(Platforms, ", "),
		})
	}

	code, err := RenderIntegrationCode(s.cfg.Integration.SDKURL, p.ID, apiKey, platform, includeComments)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	return code, nil
}

// Audit returns the publisher's audit trail, newest first.
func (s *service) Audit(ctx context.Context, id string, opts store.ListOpts) ([]*store.AuditEntry, int, error) {
	opts = clampPage(opts)

	entries, total, err := s.store.ListAuditEntries(ctx, store.AuditQueryOpts{
		PublisherID: &id,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
	if err != nil {
		return nil, 0, apierr.Internal(fmt.Errorf("listing audit entries: %w", err))
	}

	return entries, total, nil
}

// ListTasks proxies the available task listing and counts what was served.
func (s *service) ListTasks(ctx context.Context, id string, q tasks.ListQuery) tasks.TaskList {
	list := s.tasks.ListAvailable(ctx, id, q)

	now := s.now()
	s.incr(ctx, id, stats.TasksRequested, 1, now)

	if served := int64(len(list.Items)); served > 0 {
		s.incr(ctx, id, stats.TasksServed, served, now)
	}

	return list
}

// UpdateTaskStatus forwards a task status change and records it.
func (s *service) UpdateTaskStatus(ctx context.Context, id, taskID, status string) (*tasks.Task, error) {
	task, err := s.tasks.UpdateStatus(ctx, id, taskID, status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.incr(ctx, id, stats.TaskStatusUpdates, 1, now)

	if strings.EqualFold(task.Status, taskStatusCompleted) {
		s.incr(ctx, id, stats.TasksCompleted, 1, now)
	}

	s.notifier.Notify(id, NotifyTaskStatusUpdated, task)

	return task, nil
}

func (s *service) incr(ctx context.Context, id string, c stats.Counter, n int64, at time.Time) {
	if err := s.recorder.Incr(ctx, id, c, n, at); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"publisher_id": id,
			"counter":      c,
		}).Warn("Failed to record statistic")
	}
}

// audit writes an audit entry. Failures are logged and never fail the
// calling operation.
func (s *service) audit(ctx context.Context, action store.AuditAction, publisherID, actor string, details map[string]any) {
	data, err := json.Marshal(details)
	if err != nil {
		data = []byte("{}")
	}

	entry := &store.AuditEntry{
		ID:          uuid.New().String(),
		Action:      action,
		PublisherID: publisherID,
		Actor:       actor,
		Details:     string(data),
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.CreateAuditEntry(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":       action,
			"publisher_id": publisherID,
		}).Warn("Failed to write audit entry")
	}
}

// actorFromContext names the caller for the audit log.
func actorFromContext(ctx context.Context) string {
	if auth.IsInternal(ctx) {
		return ActorInternal
	}

	if p := auth.PublisherFromContext(ctx); p != nil {
		return p.ID
	}

	return "anonymous"
}

func duplicateEmail() error {
	return apierr.Conflict("A publisher with this contact email already exists")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clampPage(opts store.ListOpts) store.ListOpts {
	if opts.Limit <= 0 {
		opts.Limit = DefaultPageSize
	}

	if opts.Limit > MaxPageSize {
		opts.Limit = MaxPageSize
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return opts
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
