package metrics

import (
	"context"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("returns defaults when env not set", func(t *testing.T) {
		cfg := LoadConfig()

		if cfg.Enabled {
			t.Error("Enabled should be false by default")
		}
		if cfg.Addr != "127.0.0.1:9090" {
			t.Errorf("Addr = %q, want 127.0.0.1:9090", cfg.Addr)
		}
		if cfg.RequireTLS {
			t.Error("RequireTLS should be false by default")
		}
	})

	t.Run("loads custom values from environment", func(t *testing.T) {
		t.Setenv("METRICS_ENABLED", "true")
		t.Setenv("METRICS_ADDR", "0.0.0.0:9191")
		t.Setenv("METRICS_REQUIRE_TLS", "true")
		t.Setenv("METRICS_TLS_CERT", "/path/to/cert.pem")

		cfg := LoadConfig()

		if !cfg.Enabled {
			t.Error("Enabled should be true")
		}
		if cfg.Addr != "0.0.0.0:9191" {
			t.Errorf("Addr = %q, want 0.0.0.0:9191", cfg.Addr)
		}
		if !cfg.RequireTLS {
			t.Error("RequireTLS should be true")
		}
		if cfg.TLSCert != "/path/to/cert.pem" {
			t.Errorf("TLSCert = %q", cfg.TLSCert)
		}
	})

	t.Run("invalid bool falls back to default", func(t *testing.T) {
		t.Setenv("METRICS_ENABLED", "maybe")
		if LoadConfig().Enabled {
			t.Error("Enabled should fall back to false for invalid value")
		}
	})
}

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	if m == nil {
		t.Fatal("GetMetrics should return non-nil metrics")
	}
	if m2 := GetMetrics(); m != m2 {
		t.Error("GetMetrics should return the same instance on subsequent calls")
	}

	if m.VisitsCreated == nil || m.BehaviorUpdates == nil || m.EventsEmitted == nil {
		t.Error("counter vectors should not be nil")
	}
	if m.GeoCacheEntries == nil || m.AuthenticityScore == nil || m.HTTPDuration == nil {
		t.Error("gauge and histogram metrics should not be nil")
	}
}

func TestMetricsConvenienceMethods(t *testing.T) {
	m := GetMetrics()

	// These must not panic with arbitrary label values.
	m.IncrementVisitsCreated("pc")
	m.IncrementVisitsCreated("bot")
	m.IncrementBehaviorUpdates("scored")
	m.IncrementBehaviorUpdates("not_found")
	m.IncrementEventsEmitted("log")
	m.IncrementEventsEmitted("kafka")
	m.IncrementSinkErrors("kafka", "produce_error")
	m.IncrementHTTPRequests("/api/v1/track", "POST", "201")
	m.SetGeoCacheEntries(42)
	m.ObserveAuthenticityScore(72.5)
	m.ObserveHTTPDuration("/api/v1/track", "POST", 10*time.Millisecond)
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		srv := NewServer(Config{Enabled: true, Addr: "localhost:9090"})
		if srv == nil {
			t.Fatal("NewServer should return non-nil server")
		}
		if srv.server == nil {
			t.Error("inner http server should not be nil")
		}
		if srv.config.Addr != "localhost:9090" {
			t.Errorf("config.Addr = %q, want localhost:9090", srv.config.Addr)
		}
	})

	t.Run("disabled server starts and stops without listening", func(t *testing.T) {
		srv := NewServer(Config{Enabled: false, Addr: "localhost:9090"})
		ctx := context.Background()
		if err := srv.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
}
