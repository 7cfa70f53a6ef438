package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/adalliance/tracker/internal/auth"
	"github.com/adalliance/tracker/internal/metrics"
)

// RequestLogger logs every request and records the HTTP metrics, labeled by
// the matched route pattern so path parameters don't explode cardinality.
func RequestLogger(log zerolog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := time.Since(start)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					endpoint = p
				}
			}

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", dur).
				Msg("request")

			if m != nil {
				m.IncrementHTTPRequests(endpoint, r.Method, strconv.Itoa(ww.Status()))
				m.ObserveHTTPDuration(endpoint, r.Method, dur)
			}
		})
	}
}

type adminUserKey struct{}

// AdminUser returns the authenticated admin username, if any.
func AdminUser(ctx context.Context) string {
	u, _ := ctx.Value(adminUserKey{}).(string)
	return u
}

// RequireAuth guards the admin API with a bearer token.
func (e Env) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := e.Auth.ValidateToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), adminUserKey{}, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
