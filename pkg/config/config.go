package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr   string
	TrustProxy   bool  // honor X-Forwarded-For / X-Real-IP
	MaxBodyBytes int64 // bytes for beacon payloads

	DatabasePath string

	LogLevel  string
	LogFormat string // json or console

	// Admin auth
	JWTSecret         string
	AdminUsername     string
	AdminPassword     string // plain credential, used only when no hash is set
	AdminPasswordHash string // bcrypt hash, preferred
	TokenTTL          time.Duration

	// HTTP surface
	AllowedOrigins     []string
	RateLimitPerMinute int
	MaxExportRows      int

	// Geolocation
	GeoBaseURL       string
	GeoTimeout       time.Duration
	GeoCacheSize     int
	GeoSuccessTTL    time.Duration
	GeoFailureTTL    time.Duration
	GeoSweepInterval time.Duration

	Outputs []string // enabled sinks: log, kafka
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func Load() Config {
	return Config{
		ServerAddr:   getOr("SERVER_ADDR", ":8080"),
		TrustProxy:   getBool("TRUST_PROXY", false),
		MaxBodyBytes: getInt64("MAX_BODY_BYTES", 1<<20), // 1 MiB default

		DatabasePath: getOr("DATABASE_PATH", "./data/tracker.db"),

		LogLevel:  getOr("LOG_LEVEL", "info"),
		LogFormat: getOr("LOG_FORMAT", "json"),

		JWTSecret:         getOr("JWT_SECRET", ""),
		AdminUsername:     getOr("ADMIN_USERNAME", "admin"),
		AdminPassword:     getOr("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getOr("ADMIN_PASSWORD_HASH", ""),
		TokenTTL:          getDuration("TOKEN_TTL", 24*time.Hour),

		AllowedOrigins:     getStringSlice("ALLOWED_ORIGINS", "*"),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 100),
		MaxExportRows:      getInt("MAX_EXPORT_ROWS", 10000),

		GeoBaseURL:       getOr("GEO_BASE_URL", ""), // empty = ip-api.com
		GeoTimeout:       getDuration("GEO_TIMEOUT", 5*time.Second),
		GeoCacheSize:     getInt("GEO_CACHE_SIZE", 4096),
		GeoSuccessTTL:    getDuration("GEO_SUCCESS_TTL", 24*time.Hour),
		GeoFailureTTL:    getDuration("GEO_FAILURE_TTL", 10*time.Minute),
		GeoSweepInterval: getDuration("GEO_SWEEP_INTERVAL", 10*time.Minute),

		Outputs: getStringSlice("OUTPUTS", "log"), // default to log only
	}
}
