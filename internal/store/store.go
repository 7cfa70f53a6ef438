// Package store persists visit records in SQLite and serves the admin
// reporting queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/goccy/go-json"

	"github.com/adalliance/tracker/internal/visit"
)

// timeLayout is the canonical column format for timestamps. Fixed-width
// UTC strings compare lexicographically, so range filters work without
// driver-specific time handling, and sqlite's date() accepts them.
const timeLayout = "2006-01-02 15:04:05"

// Store wraps the visits database. It implements visit.Store plus the
// admin query surface.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the visits database at path, enables WAL, and
// ensures the schema. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports a single writer; funnel everything through one
	// connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: path}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens a fresh in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection without touching the schema.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// PingContext verifies the connection is still usable.
func (s *Store) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visit_id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		created_at TEXT NOT NULL,

		ip_address TEXT NOT NULL,
		ip_country TEXT,
		ip_city TEXT,
		is_proxy INTEGER NOT NULL DEFAULT 0,

		user_agent TEXT,
		referrer TEXT,
		page_url TEXT NOT NULL,

		device_type TEXT,
		browser TEXT,
		browser_version TEXT,
		os TEXT,
		os_version TEXT,
		is_bot INTEGER NOT NULL DEFAULT 0,

		screen_resolution TEXT,
		timezone TEXT,
		language TEXT,
		platform TEXT,
		canvas_fingerprint TEXT,
		webgl_fingerprint TEXT,
		fonts_hash TEXT,
		is_headless INTEGER NOT NULL DEFAULT 0,
		extra_signals TEXT,

		stay_duration INTEGER NOT NULL DEFAULT 0,
		scroll_depth INTEGER NOT NULL DEFAULT 0,
		mouse_movements TEXT,
		behavior_scored INTEGER NOT NULL DEFAULT 0,

		authenticity_score REAL NOT NULL DEFAULT 0,
		fingerprint_hash TEXT NOT NULL,
		raw_data TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
	CREATE INDEX IF NOT EXISTS idx_visits_fingerprint ON visits(fingerprint_hash);
	CREATE INDEX IF NOT EXISTS idx_visits_timestamp_device ON visits(timestamp, device_type);
	CREATE INDEX IF NOT EXISTS idx_visits_timestamp_score ON visits(timestamp, authenticity_score);
	CREATE INDEX IF NOT EXISTS idx_visits_timestamp_bot ON visits(timestamp, is_bot);
	CREATE INDEX IF NOT EXISTS idx_visits_location ON visits(ip_country, ip_city);
	`
	_, err := s.db.Exec(schema)
	return err
}

// extraSignals is the JSON blob for the extended hardware/network bundle
// fields that have no dedicated column.
type extraSignals struct {
	DeviceMemoryGB      *int     `json:"device_memory,omitempty"`
	HardwareConcurrency *int     `json:"hardware_concurrency,omitempty"`
	ConnectionType      *string  `json:"connection_type,omitempty"`
	StorageAvailable    *bool    `json:"storage_available,omitempty"`
	BatteryLevel        *float64 `json:"battery_level,omitempty"`
	WebRTCLocalIP       *string  `json:"webrtc_local_ip,omitempty"`
	AudioFingerprint    *string  `json:"audio_fingerprint,omitempty"`
}

func marshalExtraSignals(b visit.Bundle) (sql.NullString, error) {
	ex := extraSignals{
		DeviceMemoryGB:      b.DeviceMemoryGB,
		HardwareConcurrency: b.HardwareConcurrency,
		ConnectionType:      b.ConnectionType,
		StorageAvailable:    b.StorageAvailable,
		BatteryLevel:        b.BatteryLevel,
		WebRTCLocalIP:       b.WebRTCLocalIP,
		AudioFingerprint:    b.AudioFingerprint,
	}
	if ex == (extraSignals{}) {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(ex)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal extra signals: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalExtraSignals(raw sql.NullString, b *visit.Bundle) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var ex extraSignals
	if err := json.Unmarshal([]byte(raw.String), &ex); err != nil {
		return fmt.Errorf("unmarshal extra signals: %w", err)
	}
	b.DeviceMemoryGB = ex.DeviceMemoryGB
	b.HardwareConcurrency = ex.HardwareConcurrency
	b.ConnectionType = ex.ConnectionType
	b.StorageAvailable = ex.StorageAvailable
	b.BatteryLevel = ex.BatteryLevel
	b.WebRTCLocalIP = ex.WebRTCLocalIP
	b.AudioFingerprint = ex.AudioFingerprint
	return nil
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strNull(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}
