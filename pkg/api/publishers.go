package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/auth"
	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/hotlabel/publishers/pkg/tasks"
)

// ============================================================================
// Publisher handlers
// ============================================================================

// PublisherListResponse is a page of publishers.
type PublisherListResponse struct {
	Total int                `json:"total" example:"42"`
	Items []*store.Publisher `json:"items"`
}

// handleRegister godoc
//
//	@Summary		Register a publisher
//	@Description	Registers a publisher and returns it with its API key. The key is only shown once.
//	@Tags			publishers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		publisher.RegisterRequest	true	"Publisher profile"
//	@Success		201		{object}	store.Publisher
//	@Failure		400		{object}	apierr.Envelope
//	@Failure		409		{object}	apierr.Envelope
//	@Failure		429		{object}	apierr.Envelope	"Rate limit exceeded"
//	@Router			/publishers [post]
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req publisher.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	p, err := s.publishers.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, p)
}

// handleListPublishers godoc
//
//	@Summary		List publishers
//	@Description	Lists publishers. Only trusted internal services may call this endpoint.
//	@Tags			publishers
//	@Security		ApiKeyAuth
//	@Produce		json
//	@Param			limit	query		int	false	"Page size (max 100)"	default(50)
//	@Param			offset	query		int	false	"Offset"				default(0)
//	@Success		200		{object}	PublisherListResponse
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Router			/publishers [get]
func (s *server) handleListPublishers(w http.ResponseWriter, r *http.Request) {
	opts, err := parsePage(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	publishers, total, err := s.publishers.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if publishers == nil {
		publishers = []*store.Publisher{}
	}

	s.writeJSON(w, http.StatusOK, PublisherListResponse{Total: total, Items: publishers})
}

// handleGetPublisher godoc
//
//	@Summary		Get a publisher
//	@Tags			publishers
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Publisher ID"
//	@Success		200	{object}	store.Publisher
//	@Failure		401	{object}	apierr.Envelope
//	@Failure		403	{object}	apierr.Envelope
//	@Failure		404	{object}	apierr.Envelope
//	@Router			/publishers/{id} [get]
func (s *server) handleGetPublisher(w http.ResponseWriter, r *http.Request) {
	p, err := s.publishers.Get(r.Context(), chi.URLParam(r, auth.PublisherParam))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

// handleUpdatePublisher godoc
//
//	@Summary		Update a publisher profile
//	@Description	Changes only the fields present in the body
//	@Tags			publishers
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Publisher ID"
//	@Param			body	body		publisher.UpdateRequest	true	"Fields to change"
//	@Success		200		{object}	store.Publisher
//	@Failure		400		{object}	apierr.Envelope
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Failure		404		{object}	apierr.Envelope
//	@Failure		409		{object}	apierr.Envelope
//	@Router			/publishers/{id} [patch]
func (s *server) handleUpdatePublisher(w http.ResponseWriter, r *http.Request) {
	var req publisher.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	p, err := s.publishers.Update(r.Context(), chi.URLParam(r, auth.PublisherParam), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

// ============================================================================
// Configuration handlers
// ============================================================================

// ConfigurationResponse is returned after a configuration merge.
type ConfigurationResponse struct {
	Success       bool                `json:"success" example:"true"`
	Message       string              `json:"message" example:"Configuration updated successfully"`
	Configuration store.Configuration `json:"configuration"`
	UpdatedAt     *time.Time          `json:"updated_at"`
}

// handleUpdateConfiguration godoc
//
//	@Summary		Update widget configuration
//	@Description	Merges the given options into the named sections. Sections that are absent or null are left untouched.
//	@Tags			configuration
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Publisher ID"
//	@Param			body	body		publisher.ConfigurationUpdate	true	"Sparse configuration update"
//	@Success		200		{object}	ConfigurationResponse
//	@Failure		400		{object}	apierr.Envelope
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Failure		404		{object}	apierr.Envelope
//	@Router			/publishers/{id}/configuration [patch]
func (s *server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	var update publisher.ConfigurationUpdate
	if err := decodeJSON(r, &update); err != nil {
		s.writeError(w, r, err)

		return
	}

	p, err := s.publishers.UpdateConfiguration(r.Context(), chi.URLParam(r, auth.PublisherParam), update)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, ConfigurationResponse{
		Success:       true,
		Message:       "Configuration updated successfully",
		Configuration: p.Configuration,
		UpdatedAt:     p.UpdatedAt,
	})
}

// ============================================================================
// Statistics and integration handlers
// ============================================================================

// handleStatistics godoc
//
//	@Summary		Get publisher statistics
//	@Tags			statistics
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id			path		string	true	"Publisher ID"
//	@Param			start_date	query		string	false	"Range start (RFC 3339), defaults to end minus 7 days"
//	@Param			end_date	query		string	false	"Range end (RFC 3339), defaults to now"
//	@Param			granularity	query		string	false	"Bucket size"	Enums(hourly, daily, weekly, monthly)	default(daily)
//	@Success		200			{object}	publisher.Statistics
//	@Failure		400			{object}	apierr.Envelope
//	@Failure		401			{object}	apierr.Envelope
//	@Failure		403			{object}	apierr.Envelope
//	@Router			/publishers/{id}/statistics [get]
func (s *server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	q := publisher.StatisticsQuery{Granularity: r.URL.Query().Get("granularity")}

	var err error

	if q.Start, err = parseTimeParam(r, "start_date"); err != nil {
		s.writeError(w, r, err)

		return
	}

	if q.End, err = parseTimeParam(r, "end_date"); err != nil {
		s.writeError(w, r, err)

		return
	}

	result, err := s.publishers.Statistics(r.Context(), chi.URLParam(r, auth.PublisherParam), q)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// parseTimeParam reads an optional RFC 3339 query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apierr.Validation("Invalid date", map[string]string{
			name: "must be an RFC 3339 timestamp",
		})
	}

	return &t, nil
}

// handleIntegrationCode godoc
//
//	@Summary		Get integration code
//	@Description	Renders the snippets a publisher embeds to load the widget
//	@Tags			publishers
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id					path		string	true	"Publisher ID"
//	@Param			platform			query		string	false	"Target platform"	Enums(wordpress, custom, react, shopify, wix)	default(custom)
//	@Param			include_comments	query		bool	false	"Annotate snippets"	default(true)
//	@Success		200					{object}	publisher.IntegrationCode
//	@Failure		400					{object}	apierr.Envelope
//	@Failure		401					{object}	apierr.Envelope
//	@Failure		403					{object}	apierr.Envelope
//	@Router			/publishers/{id}/integration-code [get]
func (s *server) handleIntegrationCode(w http.ResponseWriter, r *http.Request) {
	includeComments := true

	if raw := r.URL.Query().Get("include_comments"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, apierr.Validation("Invalid include_comments", map[string]string{
				"include_comments": "must be a boolean",
			}))

			return
		}

		includeComments = v
	}

	code, err := s.publishers.IntegrationCode(
		auth.PublisherFromContext(r.Context()),
		auth.APIKeyFromContext(r.Context()),
		r.URL.Query().Get("platform"),
		includeComments,
	)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, code)
}

// ============================================================================
// Webhook handlers
// ============================================================================

// WebhookResponse is the public view of a webhook. The secret is never returned.
type WebhookResponse struct {
	ID          string    `json:"id" example:"6f1c9a2e-8d4b-4e7a-9c3f-2b5d8e1a7c40"`
	EndpointURL string    `json:"endpoint_url" example:"https://hooks.acme.example/hotlabel"`
	Events      []string  `json:"events"`
	Status      string    `json:"status" example:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

func newWebhookResponse(wh *store.Webhook) WebhookResponse {
	status := "inactive"
	if wh.Active {
		status = "active"
	}

	events := wh.Events
	if events == nil {
		events = []string{}
	}

	return WebhookResponse{
		ID:          wh.ID,
		EndpointURL: wh.EndpointURL,
		Events:      events,
		Status:      status,
		CreatedAt:   wh.CreatedAt,
	}
}

// handleCreateWebhook godoc
//
//	@Summary		Register a webhook
//	@Tags			webhooks
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Publisher ID"
//	@Param			body	body		publisher.WebhookRequest	true	"Webhook"
//	@Success		201		{object}	WebhookResponse
//	@Failure		400		{object}	apierr.Envelope
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Router			/publishers/{id}/webhooks [post]
func (s *server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req publisher.WebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	wh, err := s.publishers.CreateWebhook(r.Context(), chi.URLParam(r, auth.PublisherParam), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, newWebhookResponse(wh))
}

// handleListWebhooks godoc
//
//	@Summary		List webhooks
//	@Tags			webhooks
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Publisher ID"
//	@Success		200	{array}		WebhookResponse
//	@Failure		401	{object}	apierr.Envelope
//	@Failure		403	{object}	apierr.Envelope
//	@Router			/publishers/{id}/webhooks [get]
func (s *server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	webhooks, err := s.publishers.ListWebhooks(r.Context(), chi.URLParam(r, auth.PublisherParam))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	resp := make([]WebhookResponse, 0, len(webhooks))
	for _, wh := range webhooks {
		resp = append(resp, newWebhookResponse(wh))
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Credential handlers
// ============================================================================

// RegenerateKeyResponse carries a freshly issued API key.
type RegenerateKeyResponse struct {
	Success      bool   `json:"success" example:"true"`
	APIKey       string `json:"api_key" example:"pk_live_..."`
	APIKeyPrefix string `json:"api_key_prefix" example:"pk_live_3f9a"`
	Message      string `json:"message"`
}

// handleRegenerateAPIKey godoc
//
//	@Summary		Regenerate API key
//	@Description	Issues a new API key. The previous key stops working immediately.
//	@Tags			publishers
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Publisher ID"
//	@Success		200	{object}	RegenerateKeyResponse
//	@Failure		401	{object}	apierr.Envelope
//	@Failure		403	{object}	apierr.Envelope
//	@Router			/publishers/{id}/regenerate-api-key [post]
func (s *server) handleRegenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	p, err := s.publishers.RegenerateAPIKey(r.Context(), chi.URLParam(r, auth.PublisherParam))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, RegenerateKeyResponse{
		Success:      true,
		APIKey:       p.APIKey,
		APIKeyPrefix: p.APIKeyPrefix,
		Message:      "API key regenerated. Store it securely, it will not be shown again.",
	})
}

// ============================================================================
// Task handlers
// ============================================================================

// TaskStatusRequest is the body of a task status update.
type TaskStatusRequest struct {
	Status string `json:"status" example:"COMPLETED"`
}

// handleListTasks godoc
//
//	@Summary		List available tasks
//	@Description	Lists tasks available to the publisher. Returns an empty list when the task service is unavailable.
//	@Tags			tasks
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id		path		string	true	"Publisher ID"
//	@Param			status	query		string	false	"Status filter"			Enums(PENDING, AVAILABLE)
//	@Param			limit	query		int		false	"Maximum tasks (1-100)"	default(10)
//	@Success		200		{object}	tasks.TaskList
//	@Failure		400		{object}	apierr.Envelope
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Failure		404		{object}	apierr.Envelope
//	@Router			/publishers/{id}/tasks [get]
func (s *server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q, err := tasks.ParseListQuery(r.URL.Query().Get("status"), r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, s.publishers.ListTasks(r.Context(), chi.URLParam(r, auth.PublisherParam), q))
}

// handleUpdateTaskStatus godoc
//
//	@Summary		Update task status
//	@Tags			tasks
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Publisher ID"
//	@Param			taskID	path		string				true	"Task ID"
//	@Param			body	body		TaskStatusRequest	true	"New status"
//	@Success		200		{object}	tasks.Task
//	@Failure		400		{object}	apierr.Envelope
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Failure		404		{object}	apierr.Envelope
//	@Failure		503		{object}	apierr.Envelope
//	@Router			/publishers/{id}/tasks/{taskID}/status [patch]
func (s *server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req TaskStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)

		return
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		s.writeError(w, r, apierr.Validation("Request validation failed", map[string]string{
			"status": "cannot be blank",
		}))

		return
	}

	task, err := s.publishers.UpdateTaskStatus(r.Context(),
		chi.URLParam(r, auth.PublisherParam), chi.URLParam(r, "taskID"), status)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

// ============================================================================
// Audit and event handlers
// ============================================================================

// AuditListResponse is a page of audit entries.
type AuditListResponse struct {
	Total int                 `json:"total" example:"12"`
	Items []*store.AuditEntry `json:"items"`
}

// handleAudit godoc
//
//	@Summary		List audit entries
//	@Tags			publishers
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id		path		string	true	"Publisher ID"
//	@Param			limit	query		int		false	"Page size (max 100)"	default(50)
//	@Param			offset	query		int		false	"Offset"				default(0)
//	@Success		200		{object}	AuditListResponse
//	@Failure		401		{object}	apierr.Envelope
//	@Failure		403		{object}	apierr.Envelope
//	@Router			/publishers/{id}/audit [get]
func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := parsePage(r)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	entries, total, err := s.publishers.Audit(r.Context(), chi.URLParam(r, auth.PublisherParam), opts)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if entries == nil {
		entries = []*store.AuditEntry{}
	}

	s.writeJSON(w, http.StatusOK, AuditListResponse{Total: total, Items: entries})
}

// handleEvents godoc
//
//	@Summary		Publisher event stream
//	@Description	Upgrades to a WebSocket delivering configuration_updated, api_key_regenerated and task_status_updated messages.
//	@Tags			events
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Publisher ID"
//	@Success		101	"Switching Protocols"
//	@Failure		401	{object}	apierr.Envelope
//	@Failure		403	{object}	apierr.Envelope
//	@Router			/publishers/{id}/events [get]
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, s.cfg.Server.CORSOrigins, s.stillAuthorized, w, r)
}

// stillAuthorized re-checks the request's API key against the store. A key
// rotated after the gate admitted the request no longer resolves.
func (s *server) stillAuthorized(ctx context.Context) error {
	p := auth.PublisherFromContext(ctx)
	if p == nil {
		return apierr.MissingCredential()
	}

	current, err := s.auth.Authenticate(ctx, auth.APIKeyFromContext(ctx))
	if err != nil {
		return err
	}

	if current.ID != p.ID {
		return apierr.Forbidden()
	}

	return nil
}
