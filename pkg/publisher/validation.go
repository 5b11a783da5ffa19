package publisher

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hotlabel/publishers/pkg/apierr"
)

// Webhook event names publishers may subscribe to.
const (
	EventTaskCompleted            = "task.completed"
	EventUserSessionExpired       = "user.session.expired"
	EventQualityThresholdReached  = "quality.threshold.reached"
	EventRevenueMilestoneAchieved = "revenue.milestone.achieved"
)

// WebhookEvents lists the allowed webhook events.
var WebhookEvents = []string{
	EventTaskCompleted,
	EventUserSessionExpired,
	EventQualityThresholdReached,
	EventRevenueMilestoneAchieved,
}

var webhookSecretPattern = regexp.MustCompile(`^whsec_[a-zA-Z0-9]{16,}$`)

// httpURL accepts absolute http and https URLs with a host.
var httpURL = validation.By(func(value any) error {
	v, isNil := validation.Indirect(value)
	s, _ := v.(string)
	if isNil || s == "" {
		return nil
	}

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be a valid http or https URL")
	}

	return nil
})

// tagList accepts lists of short non-empty tags.
var tagList = validation.By(func(value any) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}

	tags, _ := v.([]string)
	for _, tag := range tags {
		if tag == "" || len(tag) > 64 {
			return errors.New("entries must be between 1 and 64 characters")
		}
	}

	return nil
})

// RegisterRequest is the body of a publisher registration.
type RegisterRequest struct {
	CompanyName             string   `json:"company_name"`
	WebsiteURL              string   `json:"website_url"`
	ContactEmail            string   `json:"contact_email"`
	ContactName             string   `json:"contact_name"`
	Description             string   `json:"description"`
	WebsiteCategories       []string `json:"website_categories"`
	EstimatedMonthlyTraffic int64    `json:"estimated_monthly_traffic"`
	IntegrationPlatform     string   `json:"integration_platform"`
	PreferredTaskTypes      []string `json:"preferred_task_types"`
}

// Validate checks the registration fields.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CompanyName, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.WebsiteURL, validation.Required, validation.Length(1, 2048), httpURL),
		validation.Field(&r.ContactEmail, validation.Required, validation.Length(3, 255), is.EmailFormat),
		validation.Field(&r.ContactName, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
		validation.Field(&r.WebsiteCategories, tagList),
		validation.Field(&r.EstimatedMonthlyTraffic, validation.Min(int64(0))),
		validation.Field(&r.IntegrationPlatform, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.PreferredTaskTypes, tagList),
	)
}

// UpdateRequest is a partial profile change. Nil fields are left as they are.
type UpdateRequest struct {
	CompanyName             *string   `json:"company_name"`
	WebsiteURL              *string   `json:"website_url"`
	ContactEmail            *string   `json:"contact_email"`
	ContactName             *string   `json:"contact_name"`
	Description             *string   `json:"description"`
	WebsiteCategories       *[]string `json:"website_categories"`
	EstimatedMonthlyTraffic *int64    `json:"estimated_monthly_traffic"`
	IntegrationPlatform     *string   `json:"integration_platform"`
	PreferredTaskTypes      *[]string `json:"preferred_task_types"`
	IsActive                *bool     `json:"is_active"`
}

// Validate checks the fields that are present.
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CompanyName, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.WebsiteURL, validation.NilOrNotEmpty, validation.Length(1, 2048), httpURL),
		validation.Field(&r.ContactEmail, validation.NilOrNotEmpty, validation.Length(3, 255), is.EmailFormat),
		validation.Field(&r.ContactName, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
		validation.Field(&r.WebsiteCategories, tagList),
		validation.Field(&r.EstimatedMonthlyTraffic, validation.Min(int64(0))),
		validation.Field(&r.IntegrationPlatform, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.PreferredTaskTypes, tagList),
	)
}

// Empty reports whether the update changes nothing.
func (r UpdateRequest) Empty() bool {
	return r.CompanyName == nil && r.WebsiteURL == nil && r.ContactEmail == nil &&
		r.ContactName == nil && r.Description == nil && r.WebsiteCategories == nil &&
		r.EstimatedMonthlyTraffic == nil && r.IntegrationPlatform == nil &&
		r.PreferredTaskTypes == nil && r.IsActive == nil
}

// WebhookRequest registers a webhook endpoint.
type WebhookRequest struct {
	EndpointURL string   `json:"endpoint_url"`
	SecretKey   string   `json:"secret_key"`
	Events      []string `json:"events"`
	Active      *bool    `json:"active"`
}

// Validate checks the endpoint, secret and event names.
func (r WebhookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EndpointURL, validation.Required, validation.Length(1, 2048), httpURL),
		validation.Field(&r.SecretKey, validation.Required,
			validation.Match(webhookSecretPattern).
				Error("must be 'whsec_' followed by at least 16 alphanumeric characters")),
		validation.Field(&r.Events, validation.Required,
			validation.Each(validation.In(toAny(WebhookEvents)...).
				Error("must be one of "+strings.Join(WebhookEvents, ", ")))),
	)
}

// validationError converts an ozzo validation result into an API error
// carrying per-field messages.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		details := make(map[string]string, len(fields))
		for field, fieldErr := range fields {
			details[field] = fieldErr.Error()
		}

		return apierr.Validation("Request validation failed", details)
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return apierr.Internal(internal)
	}

	return apierr.Validation(err.Error(), nil)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}
