package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/sirupsen/logrus"
)

const bearerPrefix = "Bearer "

// Lookup resolves publishers for the gate.
type Lookup interface {
	GetPublisher(ctx context.Context, id string) (*store.Publisher, error)
	GetPublisherByAPIKeyHash(ctx context.Context, hash string) (*store.Publisher, error)
}

// Service defines the interface for authentication operations.
type Service interface {
	Start(ctx context.Context) error
	Stop() error

	// ExtractAPIKey pulls the credential out of the request headers.
	ExtractAPIKey(r *http.Request) (string, error)

	// Authenticate resolves an API key to an active publisher.
	Authenticate(ctx context.Context, apiKey string) (*store.Publisher, error)

	// IsTrustedInternal reports whether the request comes from a trusted
	// internal service.
	IsTrustedInternal(r *http.Request) bool

	// Resolve loads the publisher addressed by a trusted internal request.
	Resolve(ctx context.Context, id string) (*store.Publisher, error)
}

// service implements Service.
type service struct {
	log            logrus.FieldLogger
	lookup         Lookup
	metrics        *metrics.Metrics
	apiKeyHeader   string
	internalHeader string
	trusted        []*net.IPNet
}

// Ensure service implements Service.
var _ Service = (*service)(nil)

// NewService creates a new auth service.
func NewService(log logrus.FieldLogger, cfg *config.Config, lookup Lookup, m *metrics.Metrics) (Service, error) {
	trusted, err := cfg.TrustedNetworks()
	if err != nil {
		return nil, err
	}

	return &service{
		log:            log.WithField("component", "auth"),
		lookup:         lookup,
		metrics:        m,
		apiKeyHeader:   cfg.Auth.APIKeyHeader,
		internalHeader: cfg.Auth.Internal.Header,
		trusted:        trusted,
	}, nil
}

// Start initializes the auth service.
func (s *service) Start(_ context.Context) error {
	s.log.WithFields(logrus.Fields{
		"api_key_header":   s.apiKeyHeader,
		"internal_header":  s.internalHeader,
		"trusted_networks": len(s.trusted),
	}).Info("Starting auth service")

	if len(s.trusted) == 0 {
		s.log.Warn("No trusted networks configured, the internal marker header alone grants internal access")
	}

	return nil
}

// Stop shuts down the auth service.
func (s *service) Stop() error {
	s.log.Info("Stopping auth service")

	return nil
}

// ExtractAPIKey returns the API key carried by the request. The dedicated
// header wins over Authorization, which must use the Bearer scheme.
func (s *service) ExtractAPIKey(r *http.Request) (string, error) {
	if key := r.Header.Get(s.apiKeyHeader); key != "" {
		return key, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		s.recordFailure(apierr.CodeMissingCredential)

		return "", apierr.MissingCredential()
	}

	if !strings.HasPrefix(header, bearerPrefix) || len(header) == len(bearerPrefix) {
		s.recordFailure(apierr.CodeInvalidCredentialFormat)

		return "", apierr.InvalidCredentialFormat()
	}

	return strings.TrimPrefix(header, bearerPrefix), nil
}

// Authenticate resolves apiKey to its publisher.
func (s *service) Authenticate(ctx context.Context, apiKey string) (*store.Publisher, error) {
	publisher, err := s.lookup.GetPublisherByAPIKeyHash(ctx, HashAPIKey(apiKey))
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("looking up api key: %w", err))
	}

	if publisher == nil {
		s.recordFailure(apierr.CodeInvalidCredential)

		return nil, apierr.InvalidCredential()
	}

	if !publisher.IsActive {
		s.recordFailure(apierr.CodeInactiveAccount)

		return nil, apierr.InactiveAccount()
	}

	return publisher, nil
}

// IsTrustedInternal requires the internal marker header set to "true" and,
// when trusted networks are configured, a peer address inside one of them.
// The peer is the connection address, never a forwarded header.
func (s *service) IsTrustedInternal(r *http.Request) bool {
	if !strings.EqualFold(strings.TrimSpace(r.Header.Get(s.internalHeader)), "true") {
		return false
	}

	peer := PeerAddr(r)
	trusted := s.peerTrusted(peer)

	if s.metrics != nil {
		s.metrics.RecordInternalCall(trusted)
	}

	if !trusted {
		s.log.WithFields(logrus.Fields{
			"peer_addr":   peer,
			"remote_addr": r.RemoteAddr,
		}).Warn("Internal marker from untrusted address")
	}

	return trusted
}

// Resolve loads the publisher addressed by a trusted internal request.
func (s *service) Resolve(ctx context.Context, id string) (*store.Publisher, error) {
	publisher, err := s.lookup.GetPublisher(ctx, id)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("getting publisher: %w", err))
	}

	if publisher == nil {
		return nil, apierr.NotFound("Publisher", id)
	}

	return publisher, nil
}

func (s *service) peerTrusted(remoteAddr string) bool {
	if len(s.trusted) == 0 {
		return true
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, n := range s.trusted {
		if n.Contains(ip) {
			return true
		}
	}

	return false
}

func (s *service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordAuthFailure(reason)
	}
}
