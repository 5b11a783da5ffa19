package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) GetPublisher(ctx context.Context, id string) (*store.Publisher, error) {
	args := m.Called(id)

	p, _ := args.Get(0).(*store.Publisher)

	return p, args.Error(1)
}

func (m *mockLookup) GetPublisherByAPIKeyHash(ctx context.Context, hash string) (*store.Publisher, error) {
	args := m.Called(hash)

	p, _ := args.Get(0).(*store.Publisher)

	return p, args.Error(1)
}

func newTestService(t *testing.T, lookup Lookup, trusted ...string) (Service, *metrics.Metrics) {
	t.Helper()

	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	cfg.Auth.Internal.TrustedNetworks = trusted

	log, _ := logtest.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())

	svc, err := NewService(log, cfg, lookup, m)
	require.NoError(t, err)

	return svc, m
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, prefix, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, APIKeyPrefix))
	assert.Len(t, key, len(APIKeyPrefix)+22)
	assert.Equal(t, HashAPIKey(key), hash)
	assert.Len(t, hash, 64)
	assert.Equal(t, key[:12], prefix)

	other, _, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestExtractAPIKey(t *testing.T) {
	svc, _ := newTestService(t, new(mockLookup))

	tests := []struct {
		name    string
		headers map[string]string
		want    string
		code    string
	}{
		{"dedicated header", map[string]string{"X-API-Key": "pk_live_a"}, "pk_live_a", ""},
		{"bearer", map[string]string{"Authorization": "Bearer pk_live_b"}, "pk_live_b", ""},
		{"dedicated header wins", map[string]string{"X-API-Key": "pk_live_a", "Authorization": "Bearer pk_live_b"}, "pk_live_a", ""},
		{"missing", nil, "", apierr.CodeMissingCredential},
		{"basic scheme", map[string]string{"Authorization": "Basic abc"}, "", apierr.CodeInvalidCredentialFormat},
		{"lowercase bearer", map[string]string{"Authorization": "bearer pk_live_b"}, "", apierr.CodeInvalidCredentialFormat},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, "", apierr.CodeInvalidCredentialFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			key, err := svc.ExtractAPIKey(r)
			if tt.code != "" {
				assert.True(t, apierr.Is(err, tt.code), "got %v", err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	lookup := new(mockLookup)
	svc, m := newTestService(t, lookup)
	ctx := context.Background()

	active := &store.Publisher{ID: "p1", IsActive: true}
	inactive := &store.Publisher{ID: "p2", IsActive: false}

	lookup.On("GetPublisherByAPIKeyHash", HashAPIKey("good")).Return(active, nil)
	lookup.On("GetPublisherByAPIKeyHash", HashAPIKey("dormant")).Return(inactive, nil)
	lookup.On("GetPublisherByAPIKeyHash", HashAPIKey("unknown")).Return(nil, nil)
	lookup.On("GetPublisherByAPIKeyHash", HashAPIKey("broken")).Return(nil, errors.New("db down"))

	p, err := svc.Authenticate(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	_, err = svc.Authenticate(ctx, "dormant")
	assert.True(t, apierr.Is(err, apierr.CodeInactiveAccount))

	_, err = svc.Authenticate(ctx, "unknown")
	assert.True(t, apierr.Is(err, apierr.CodeInvalidCredential))

	_, err = svc.Authenticate(ctx, "broken")
	assert.True(t, apierr.Is(err, apierr.CodeInternal))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthFailuresTotal.WithLabelValues(apierr.CodeInvalidCredential)))
	lookup.AssertExpectations(t)
}

func TestIsTrustedInternal(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		marker  string
		want    bool
	}{
		{"no marker", nil, "10.0.0.5:1234", "", false},
		{"marker without networks", nil, "203.0.113.9:1234", "true", true},
		{"marker case insensitive", nil, "203.0.113.9:1234", "TRUE", true},
		{"marker false", nil, "10.0.0.5:1234", "false", false},
		{"marker from trusted network", []string{"10.0.0.0/8"}, "10.0.0.5:1234", "true", true},
		{"marker from outside", []string{"10.0.0.0/8"}, "203.0.113.9:1234", "true", false},
		{"trusted address without marker", []string{"10.0.0.0/8"}, "10.0.0.5:1234", "", false},
		{"bare address", []string{"127.0.0.1"}, "127.0.0.1", "true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, new(mockLookup), tt.trusted...)

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote

			if tt.marker != "" {
				r.Header.Set("X-Internal-Service", tt.marker)
			}

			assert.Equal(t, tt.want, svc.IsTrustedInternal(r))
		})
	}
}

func TestIsTrustedInternalUsesCapturedPeer(t *testing.T) {
	svc, _ := newTestService(t, new(mockLookup), "10.0.0.0/8")

	var trusted bool

	handler := CapturePeer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A proxy header rewrite after capture must not change the verdict.
		r.RemoteAddr = "10.1.2.3:4444"
		trusted = svc.IsTrustedInternal(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:1234"
	r.Header.Set("X-Internal-Service", "true")

	handler.ServeHTTP(httptest.NewRecorder(), r)
	assert.False(t, trusted)

	r.RemoteAddr = "10.0.0.5:1234"

	handler.ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, trusted)
}

func newOwnerRouter(svc Service, withInternal bool) http.Handler {
	r := chi.NewRouter()

	gate := RequirePublisher(svc)
	if withInternal {
		gate = RequirePublisherOrInternal(svc)
	}

	r.With(gate, RequireOwner(svc)).Get("/publishers/{id}", func(w http.ResponseWriter, r *http.Request) {
		p := PublisherFromContext(r.Context())
		_, _ = w.Write([]byte(p.ID))
	})

	r.With(RequireInternal(svc)).Get("/publishers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func TestOwnershipMiddleware(t *testing.T) {
	lookup := new(mockLookup)
	svc, _ := newTestService(t, lookup)

	owner := &store.Publisher{ID: "p1", IsActive: true}
	lookup.On("GetPublisherByAPIKeyHash", HashAPIKey("pk_live_owner")).Return(owner, nil)
	lookup.On("GetPublisherByAPIKeyHash", mock.Anything).Return(nil, nil)
	lookup.On("GetPublisher", "p2").Return(&store.Publisher{ID: "p2", IsActive: true}, nil)
	lookup.On("GetPublisher", "ghost").Return(nil, nil)

	tests := []struct {
		name     string
		internal bool
		path     string
		headers  map[string]string
		status   int
		body     string
	}{
		{"owner", false, "/publishers/p1", map[string]string{"X-API-Key": "pk_live_owner"}, http.StatusOK, "p1"},
		{"other publisher", false, "/publishers/p2", map[string]string{"X-API-Key": "pk_live_owner"}, http.StatusForbidden, ""},
		{"other missing publisher", false, "/publishers/ghost", map[string]string{"X-API-Key": "pk_live_owner"}, http.StatusForbidden, ""},
		{"unknown key", false, "/publishers/p1", map[string]string{"X-API-Key": "pk_live_nope"}, http.StatusUnauthorized, ""},
		{"no key", false, "/publishers/p1", nil, http.StatusUnauthorized, ""},
		{"marker ignored on owner-only route", false, "/publishers/p2", map[string]string{"X-Internal-Service": "true"}, http.StatusUnauthorized, ""},
		{"internal bypass", true, "/publishers/p2", map[string]string{"X-Internal-Service": "true"}, http.StatusOK, "p2"},
		{"internal bypass unknown target", true, "/publishers/ghost", map[string]string{"X-Internal-Service": "true"}, http.StatusNotFound, ""},
		{"internal list", true, "/publishers", map[string]string{"X-Internal-Service": "true"}, http.StatusNoContent, ""},
		{"publisher on internal list", true, "/publishers", map[string]string{"X-API-Key": "pk_live_owner"}, http.StatusForbidden, ""},
		{"anonymous on internal list", true, "/publishers", nil, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			newOwnerRouter(svc, tt.internal).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)

			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}

			if tt.status == http.StatusForbidden {
				assert.NotContains(t, rec.Body.String(), "not found")
			}
		})
	}
}
