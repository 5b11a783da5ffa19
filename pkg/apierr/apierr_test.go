package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{MissingCredential(), http.StatusUnauthorized},
		{InvalidCredentialFormat(), http.StatusUnauthorized},
		{InvalidCredential(), http.StatusUnauthorized},
		{InactiveAccount(), http.StatusForbidden},
		{Forbidden(), http.StatusForbidden},
		{NotFound("Publisher", "x"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{Validation("bad", nil), http.StatusBadRequest},
		{New(CodeRateLimited, "slow down"), http.StatusTooManyRequests},
		{ServiceUnavailable("down", nil), http.StatusServiceUnavailable},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{New("unknown_code", "?"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status())
		})
	}
}

func TestFromWrapped(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NotFound("Publisher", "abc"))

	got := From(wrapped)
	assert.Equal(t, CodeNotFound, got.Code)
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeConflict))

	cause := errors.New("db down")
	internal := From(cause)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.ErrorIs(t, internal, cause)
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Write(rec, req, InvalidCredential())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ApiKey", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, CodeInvalidCredential, env.Error.Code)
	assert.Equal(t, "Invalid API key", env.Error.Message)
}

func TestWriteHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Write(rec, req, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}
