// Package httpx is the HTTP surface: the public tracking endpoints and the
// authenticated admin API.
package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/adalliance/tracker/internal/auth"
	"github.com/adalliance/tracker/internal/metrics"
	"github.com/adalliance/tracker/internal/store"
	"github.com/adalliance/tracker/internal/visit"
	cfg "github.com/adalliance/tracker/pkg/config"
)

type Env struct {
	Cfg     cfg.Config
	Service *visit.Service
	Store   *store.Store
	Auth    *auth.Manager
	Creds   auth.Credentials
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	validate *validator.Validate
}

// NewRouter assembles the full route tree with logging, CORS and
// per-IP rate limiting on the public tracking endpoints.
func NewRouter(e Env) http.Handler {
	if e.validate == nil {
		e.validate = validator.New()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(e.Log, e.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: e.Cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", e.Healthz)
	r.Get("/readyz", e.Readyz)

	// Public tracking endpoints, rate limited per client IP.
	r.Group(func(r chi.Router) {
		if e.Cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(e.Cfg.RateLimitPerMinute, time.Minute))
		}
		r.Get("/api/v1/track/ping", e.Ping)
		r.Post("/api/v1/track", e.Track)
		r.Post("/api/v1/track/behavior", e.TrackBehavior)
	})

	r.Post("/api/v1/admin/login", e.Login)

	r.Group(func(r chi.Router) {
		r.Use(e.RequireAuth)
		r.Get("/api/v1/admin/visits", e.ListVisits)
		r.Get("/api/v1/admin/visits/{visitID}", e.GetVisit)
		r.Delete("/api/v1/admin/visits/{visitID}", e.DeleteVisit)
		r.Delete("/api/v1/admin/visits", e.ClearVisits)
		r.Get("/api/v1/admin/stats/summary", e.StatsSummary)
		r.Get("/api/v1/admin/stats/trend", e.StatsTrend)
		r.Get("/api/v1/admin/stats/devices", e.StatsDevices)
		r.Get("/api/v1/admin/stats/locations", e.StatsLocations)
		r.Get("/api/v1/admin/export", e.Export)
	})

	return r
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	if e.Store != nil {
		if err := e.Store.PingContext(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
