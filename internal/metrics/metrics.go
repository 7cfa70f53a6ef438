package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the Prometheus metrics for the tracker.
type Metrics struct {
	// Counters
	VisitsCreated   *prometheus.CounterVec
	BehaviorUpdates *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec

	// Gauges
	GeoCacheEntries prometheus.Gauge

	// Histograms
	AuthenticityScore prometheus.Histogram
	HTTPDuration      *prometheus.HistogramVec
}

// Config holds configuration for the metrics server
type Config struct {
	Enabled    bool
	Addr       string
	TLSCert    string
	TLSKey     string
	ClientCA   string
	RequireTLS bool
}

// LoadConfig loads metrics configuration from environment variables
func LoadConfig() Config {
	return Config{
		Enabled:    getBool("METRICS_ENABLED", false),
		Addr:       getOr("METRICS_ADDR", "127.0.0.1:9090"),
		TLSCert:    getOr("METRICS_TLS_CERT", ""),
		TLSKey:     getOr("METRICS_TLS_KEY", ""),
		ClientCA:   getOr("METRICS_CLIENT_CA", ""),
		RequireTLS: getBool("METRICS_REQUIRE_TLS", false),
	}
}

// NewMetrics creates and registers all tracker metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		VisitsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_visits_created_total",
				Help: "Total visits recorded by device type",
			},
			[]string{"device_type"},
		),

		BehaviorUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_behavior_updates_total",
				Help: "Total behavior beacons processed by outcome",
			},
			[]string{"outcome"},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_events_emitted_total",
				Help: "Total events handed to a sink",
			},
			[]string{"sink"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_sink_errors_total",
				Help: "Total errors writing to a sink",
			},
			[]string{"sink", "error_type"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_http_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		GeoCacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_geo_cache_entries",
				Help: "Current number of cached geolocation entries",
			},
		),

		AuthenticityScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_authenticity_score",
				Help:    "Distribution of authenticity scores at visit creation",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method"},
		),
	}

	// Register all metrics
	prometheus.MustRegister(m.VisitsCreated)
	prometheus.MustRegister(m.BehaviorUpdates)
	prometheus.MustRegister(m.EventsEmitted)
	prometheus.MustRegister(m.SinkErrors)
	prometheus.MustRegister(m.HTTPRequests)
	prometheus.MustRegister(m.GeoCacheEntries)
	prometheus.MustRegister(m.AuthenticityScore)
	prometheus.MustRegister(m.HTTPDuration)

	return m
}

// Server represents the metrics HTTP server
type Server struct {
	server *http.Server
	config Config
}

// NewServer creates a new metrics server
func NewServer(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.RequireTLS && config.TLSCert != "" && config.TLSKey != "" {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		// mTLS when a client CA is provided
		if config.ClientCA != "" {
			clientCAs, err := loadCertPool(config.ClientCA)
			if err != nil {
				log.Printf("metrics: failed to load client CA: %v", err)
			} else {
				tlsConfig.ClientCAs = clientCAs
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
			}
		}

		srv.TLSConfig = tlsConfig
	}

	return &Server{
		server: srv,
		config: config,
	}
}

// Start starts the metrics server in a separate goroutine
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		log.Printf("metrics: disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		var err error
		if s.config.RequireTLS && s.config.TLSCert != "" && s.config.TLSKey != "" {
			log.Printf("metrics: HTTPS server listening on %s", s.config.Addr)
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			log.Printf("metrics: HTTP server listening on %s", s.config.Addr)
			err = s.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Helper functions
func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func loadCertPool(certFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", certFile)
	}
	return pool, nil
}

// Global metrics instance
var defaultMetrics *Metrics

// GetMetrics returns the global metrics instance, creating it on first use.
func GetMetrics() *Metrics {
	if defaultMetrics == nil {
		defaultMetrics = NewMetrics()
	}
	return defaultMetrics
}

// Convenience methods for common operations
func (m *Metrics) IncrementVisitsCreated(deviceType string) {
	m.VisitsCreated.WithLabelValues(deviceType).Inc()
}

func (m *Metrics) IncrementBehaviorUpdates(outcome string) {
	m.BehaviorUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementEventsEmitted(sink string) {
	m.EventsEmitted.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncrementSinkErrors(sink, errorType string) {
	m.SinkErrors.WithLabelValues(sink, errorType).Inc()
}

func (m *Metrics) IncrementHTTPRequests(endpoint, method, status string) {
	m.HTTPRequests.WithLabelValues(endpoint, method, status).Inc()
}

func (m *Metrics) SetGeoCacheEntries(n float64) {
	m.GeoCacheEntries.Set(n)
}

func (m *Metrics) ObserveAuthenticityScore(score float64) {
	m.AuthenticityScore.Observe(score)
}

func (m *Metrics) ObserveHTTPDuration(endpoint, method string, duration time.Duration) {
	m.HTTPDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}
