package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/metrics"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultIdentityHeader carries the principal authenticated by the upstream identity provider.
const DefaultIdentityHeader = "X-User-ID"

type principalKey struct{}

// Identity stores the principal named by header in the request context.
//
// Requests without the header pass through; handlers decide whether a principal is required.
func Identity(header string) Middleware {
	if header == "" {
		header = DefaultIdentityHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal := strings.TrimSpace(r.Header.Get(header)); principal != "" {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal stored by [Identity], if any.
func PrincipalFrom(ctx context.Context) models.Optional[string] {
	if p, ok := ctx.Value(principalKey{}).(string); ok && p != "" {
		return models.Some(p)
	}
	return models.None[string]()
}

// RequestLogger logs one line per request.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Instrument counts requests by route pattern, method and status.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}
