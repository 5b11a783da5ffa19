package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/store"
)

// Context keys for caller information.
type contextKey string

const (
	publisherContextKey contextKey = "publisher"
	apiKeyContextKey    contextKey = "api_key"
	internalContextKey  contextKey = "internal"
	peerAddrContextKey  contextKey = "peer_addr"
)

// PublisherParam is the chi URL parameter holding the target publisher id.
const PublisherParam = "id"

// PublisherFromContext retrieves the publisher the request acts on.
func PublisherFromContext(ctx context.Context) *store.Publisher {
	publisher, ok := ctx.Value(publisherContextKey).(*store.Publisher)
	if !ok {
		return nil
	}

	return publisher
}

// ContextWithPublisher adds a publisher to the context.
func ContextWithPublisher(ctx context.Context, publisher *store.Publisher) context.Context {
	return context.WithValue(ctx, publisherContextKey, publisher)
}

// APIKeyFromContext returns the raw API key the request authenticated with.
func APIKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyContextKey).(string)

	return key
}

// ContextWithAPIKey adds the raw API key to the context.
func ContextWithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, apiKeyContextKey, key)
}

// IsInternal reports whether the request was admitted as a trusted internal call.
func IsInternal(ctx context.Context) bool {
	internal, _ := ctx.Value(internalContextKey).(bool)

	return internal
}

// ContextWithInternal marks the context as a trusted internal call.
func ContextWithInternal(ctx context.Context) context.Context {
	return context.WithValue(ctx, internalContextKey, true)
}

// CapturePeer records the connection's remote address before any proxy
// header rewriting, so trusted networks are matched against the real peer.
// It must run ahead of middleware.RealIP.
func CapturePeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrContextKey, r.RemoteAddr)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PeerAddr returns the remote address captured by CapturePeer, falling back
// to r.RemoteAddr.
func PeerAddr(r *http.Request) string {
	if addr, ok := r.Context().Value(peerAddrContextKey).(string); ok && addr != "" {
		return addr
	}

	return r.RemoteAddr
}

// RequirePublisher creates middleware that authenticates the API key.
func RequirePublisher(authSvc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(authSvc, r)
			if err != nil {
				apierr.Write(w, r, err)

				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePublisherOrInternal creates middleware that admits trusted internal
// callers without a credential and authenticates everyone else.
func RequirePublisherOrInternal(authSvc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authSvc.IsTrustedInternal(r) {
				next.ServeHTTP(w, r.WithContext(ContextWithInternal(r.Context())))

				return
			}

			ctx, err := authenticate(authSvc, r)
			if err != nil {
				apierr.Write(w, r, err)

				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireInternal creates middleware for routes only internal services may
// call. Other callers are still authenticated so credential errors surface
// before the authorization failure.
func RequireInternal(authSvc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authSvc.IsTrustedInternal(r) {
				next.ServeHTTP(w, r.WithContext(ContextWithInternal(r.Context())))

				return
			}

			if _, err := authenticate(authSvc, r); err != nil {
				apierr.Write(w, r, err)

				return
			}

			apierr.Write(w, r, apierr.Forbidden())
		})
	}
}

// RequireOwner creates middleware that checks the authenticated publisher
// owns the publisher named by the path. Internal calls resolve the target
// from the path instead.
func RequireOwner(authSvc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, PublisherParam)

			if IsInternal(r.Context()) {
				publisher, err := authSvc.Resolve(r.Context(), id)
				if err != nil {
					apierr.Write(w, r, err)

					return
				}

				next.ServeHTTP(w, r.WithContext(ContextWithPublisher(r.Context(), publisher)))

				return
			}

			publisher := PublisherFromContext(r.Context())
			if publisher == nil {
				apierr.Write(w, r, apierr.MissingCredential())

				return
			}

			if publisher.ID != id {
				apierr.Write(w, r, apierr.Forbidden())

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(authSvc Service, r *http.Request) (context.Context, error) {
	key, err := authSvc.ExtractAPIKey(r)
	if err != nil {
		return nil, err
	}

	publisher, err := authSvc.Authenticate(r.Context(), key)
	if err != nil {
		return nil, err
	}

	ctx := ContextWithPublisher(r.Context(), publisher)

	return ContextWithAPIKey(ctx, key), nil
}
