// Package tasks forwards task listing and status updates to the downstream
// task service on behalf of a publisher.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	opList         = "list"
	opUpdateStatus = "update_status"

	// maxBodyBytes caps how much of a downstream response is read.
	maxBodyBytes = 4 << 20
)

// Task statuses publishers may filter on.
const (
	StatusPending   = "PENDING"
	StatusAvailable = "AVAILABLE"
)

// Task is a unit of work served to a publisher's visitors.
type Task struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Content     map[string]any   `json:"content"`
	Options     []map[string]any `json:"options"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   *time.Time       `json:"updated_at"`
}

// TaskList is a page of tasks.
type TaskList struct {
	Total int    `json:"total"`
	Items []Task `json:"items"`
}

// ListQuery filters a task listing.
type ListQuery struct {
	Status string
	Limit  int
}

// ParseListQuery validates the raw status and limit query parameters.
func ParseListQuery(status, limit string) (ListQuery, error) {
	q := ListQuery{Limit: DefaultLimit}

	if status != "" {
		switch s := strings.ToUpper(status); s {
		case StatusPending, StatusAvailable:
			q.Status = s
		default:
			return q, apierr.Validation("Invalid task status filter",
				map[string]string{"status": "must be one of PENDING, AVAILABLE"})
		}
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > MaxLimit {
			return q, apierr.Validation("Invalid limit",
				map[string]string{"limit": fmt.Sprintf("must be an integer between 1 and %d", MaxLimit)})
		}

		q.Limit = n
	}

	return q, nil
}

// Proxy talks to the downstream task service.
type Proxy interface {
	// ListAvailable never fails: downstream errors yield an empty list.
	ListAvailable(ctx context.Context, publisherID string, q ListQuery) TaskList

	// UpdateStatus forwards a status transition and reports downstream failures.
	UpdateStatus(ctx context.Context, publisherID, taskID, status string) (*Task, error)
}

// proxy implements Proxy.
type proxy struct {
	log            logrus.FieldLogger
	baseURL        string
	internalHeader string
	client         *http.Client
	metrics        *metrics.Metrics
}

// Ensure proxy implements Proxy.
var _ Proxy = (*proxy)(nil)

// NewProxy creates a task service proxy. Calls time out after the configured
// task_service.timeout and are never retried.
func NewProxy(log logrus.FieldLogger, cfg *config.Config, m *metrics.Metrics) Proxy {
	return &proxy{
		log:            log.WithField("component", "tasks"),
		baseURL:        strings.TrimRight(cfg.TaskService.BaseURL, "/"),
		internalHeader: cfg.Auth.Internal.Header,
		client:         &http.Client{Timeout: cfg.TaskService.Timeout},
		metrics:        m,
	}
}

// ListAvailable fetches available tasks for a publisher.
func (p *proxy) ListAvailable(ctx context.Context, publisherID string, q ListQuery) TaskList {
	params := url.Values{}
	params.Set("publisher_id", publisherID)
	params.Set("limit", strconv.Itoa(q.Limit))

	if q.Status != "" {
		params.Set("status", q.Status)
	}

	start := time.Now()

	var list TaskList

	err := p.do(ctx, http.MethodGet, "/api/v1/tasks/available?"+params.Encode(), nil, &list)
	if err != nil {
		p.record(opList, "error", start)
		p.log.WithError(err).WithField("publisher_id", publisherID).
			Warn("Task service unavailable, returning empty task list")

		return TaskList{Total: 0, Items: []Task{}}
	}

	p.record(opList, "ok", start)

	if list.Items == nil {
		list.Items = []Task{}
	}

	if len(list.Items) > q.Limit {
		list.Items = list.Items[:q.Limit]
	}

	if list.Total < len(list.Items) {
		list.Total = len(list.Items)
	}

	return list
}

// UpdateStatus forwards a task status change.
func (p *proxy) UpdateStatus(ctx context.Context, publisherID, taskID, status string) (*Task, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apierr.Validation("Task status is required", map[string]string{"status": "cannot be blank"})
	}

	body, err := json.Marshal(map[string]string{
		"status":       status,
		"publisher_id": publisherID,
	})
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("encoding status update: %w", err))
	}

	start := time.Now()

	var task Task

	err = p.do(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(taskID)+"/status", body, &task)
	if err != nil {
		p.record(opUpdateStatus, "error", start)

		var downstream *downstreamError
		if errors.As(err, &downstream) {
			switch downstream.status {
			case http.StatusNotFound:
				return nil, apierr.NotFound("Task", taskID)
			case http.StatusBadRequest, http.StatusUnprocessableEntity:
				p.log.WithFields(logrus.Fields{
					"publisher_id": publisherID,
					"task_id":      taskID,
					"status":       downstream.status,
					"body":         downstream.body,
				}).Warn("Task service rejected status update")

				return nil, apierr.Validation("Task service rejected the status update", map[string]string{
					"status": "status transition not accepted for this task",
				})
			}
		}

		p.log.WithError(err).WithFields(logrus.Fields{
			"publisher_id": publisherID,
			"task_id":      taskID,
		}).Error("Task status update failed")

		return nil, apierr.ServiceUnavailable("Task service is unavailable", err)
	}

	p.record(opUpdateStatus, "ok", start)

	return &task, nil
}

// downstreamError is a non-2xx response from the task service.
type downstreamError struct {
	status int
	body   string
}

func (e *downstreamError) Error() string {
	return fmt.Sprintf("task service returned %d: %s", e.status, e.body)
}

func (p *proxy) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(p.internalHeader, "true")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling task service: %w", err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading task service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &downstreamError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	if list, ok := out.(*TaskList); ok {
		return decodeList(data, list)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding task service response: %w", err)
	}

	return nil
}

// decodeList accepts either a bare array of tasks or a {total, items} object.
func decodeList(data []byte, list *TaskList) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list.Items); err != nil {
			return fmt.Errorf("decoding task list: %w", err)
		}

		list.Total = len(list.Items)

		return nil
	}

	if err := json.Unmarshal(trimmed, list); err != nil {
		return fmt.Errorf("decoding task list: %w", err)
	}

	return nil
}

func (p *proxy) record(operation, outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordTaskProxy(operation, outcome, time.Since(start).Seconds())
	}
}
