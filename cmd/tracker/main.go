package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adalliance/tracker/internal/auth"
	"github.com/adalliance/tracker/internal/geo"
	"github.com/adalliance/tracker/internal/httpx"
	"github.com/adalliance/tracker/internal/logging"
	"github.com/adalliance/tracker/internal/metrics"
	"github.com/adalliance/tracker/internal/sink"
	"github.com/adalliance/tracker/internal/store"
	"github.com/adalliance/tracker/internal/ua"
	"github.com/adalliance/tracker/internal/visit"
	"github.com/adalliance/tracker/pkg/config"
)

func main() {
	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("open database")
	}
	defer st.Close()

	mgr, err := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("admin auth setup")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.GetMetrics()

	// Geolocation with a bounded, TTL'd cache.
	geoClient := geo.NewClient(cfg.GeoBaseURL, cfg.GeoTimeout)
	geoCache := geo.NewCache(cfg.GeoCacheSize, cfg.GeoSuccessTTL, cfg.GeoFailureTTL)
	resolver := geo.NewResolver(geoClient, geoCache, logging.Component(log, "geo"))
	go func() {
		ticker := time.NewTicker(cfg.GeoSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				swept := resolver.SweepExpired()
				stats := resolver.CacheStats()
				m.SetGeoCacheEntries(float64(stats.Size))
				if swept > 0 {
					log.Debug().Int("swept", swept).Msg("geo cache sweep")
				}
			}
		}
	}()

	// Sink fan-out per OUTPUTS.
	var sinks []sink.Sink
	for _, name := range cfg.Outputs {
		switch name {
		case "log":
			sinks = append(sinks, sink.NewLogSink())
		case "kafka":
			sinks = append(sinks, sink.NewKafkaSinkFromEnv())
		default:
			log.Warn().Str("sink", name).Msg("unknown sink in OUTPUTS, skipping")
		}
	}
	fanout := sink.NewFanout(sinks, m, logging.Component(log, "sink"))
	fanout.Start(ctx)
	defer fanout.Close()

	svc := visit.NewService(st, resolver, ua.New(), fanout.Emit, logging.Component(log, "visit"))

	env := httpx.Env{
		Cfg:     cfg,
		Service: svc,
		Store:   st,
		Auth:    mgr,
		Creds: auth.Credentials{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
			Hash:     cfg.AdminPasswordHash,
		},
		Metrics: m,
		Log:     logging.Component(log, "http"),
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           httpx.NewRouter(env),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsSrv := metrics.NewServer(metrics.LoadConfig())
	if err := metricsSrv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("metrics server start")
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("tracker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics shutdown")
	}
}
