package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound reports a lookup for a visit id that has no record.
var ErrNotFound = errors.New("visit not found")

// Store is the persistence surface the lifecycle manager needs. The full
// storage layer offers more (admin queries, aggregation); creation and the
// single behavioral mutation only touch these three.
type Store interface {
	InsertVisit(ctx context.Context, r *Record) error
	GetVisit(ctx context.Context, visitID string) (*Record, error)
	UpdateBehavior(ctx context.Context, r *Record) error
}

// Classification is the result of user-agent parsing.
type Classification struct {
	DeviceType     string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Bot            bool
}

// Parser classifies a raw user-agent string.
type Parser interface {
	Classify(userAgent string) Classification
}

// Location is a resolved IP geolocation.
type Location struct {
	Country     string
	CountryCode string
	City        string
	Region      string
}

// Geolocator resolves an IP address to a location, or nil when the lookup
// fails or yields nothing. Lookup failure is never an error here: the
// caller treats absence as "unknown location".
type Geolocator interface {
	Resolve(ctx context.Context, ip string) *Location
}

// Event types emitted to the sink fan-out.
const (
	EventVisitCreated    = "visit_created"
	EventBehaviorUpdated = "behavior_updated"
)

// Event is the lightweight envelope published to sinks after a successful
// state change.
type Event struct {
	Type            string  `json:"type"`
	TS              string  `json:"ts"` // ISO8601
	VisitID         string  `json:"visit_id"`
	FingerprintHash string  `json:"fingerprint_hash,omitempty"`
	IPAddress       string  `json:"ip_address,omitempty"`
	DeviceType      string  `json:"device_type,omitempty"`
	Score           float64 `json:"authenticity_score"`
}

// Service owns the visit record lifecycle: creation on the first beacon and
// the single amendment on the behavior beacon.
type Service struct {
	store  Store
	geo    Geolocator
	parser Parser
	emit   func(Event)
	log    zerolog.Logger
}

// NewService wires the lifecycle manager. emit may be nil when no sinks are
// configured.
func NewService(store Store, geo Geolocator, parser Parser, emit func(Event), log zerolog.Logger) *Service {
	return &Service{store: store, geo: geo, parser: parser, emit: emit, log: log}
}

// CreateInput carries the first-contact beacon.
type CreateInput struct {
	UserAgent string
	PageURL   string
	Referrer  *string
	Bundle    Bundle
	IsProxy   bool
	RawData   *string
}

// CreateVisit resolves classification and geolocation, derives the
// fingerprint identity and the initial authenticity score, and persists a
// new record under a fresh opaque visit id. Only a storage failure is
// fatal; a failed geolocation lookup leaves the location fields empty.
func (s *Service) CreateVisit(ctx context.Context, in CreateInput, clientIP string) (*Record, error) {
	cls := s.parser.Classify(in.UserAgent)
	loc := s.geo.Resolve(ctx, clientIP)

	// The client IP is part of the identity on purpose: the same browser on
	// a different network is a different fingerprint.
	ip := clientIP
	hash := Hash(
		in.Bundle.Canvas,
		in.Bundle.WebGL,
		in.Bundle.Fonts,
		in.Bundle.ScreenResolution,
		in.Bundle.Timezone,
		&ip,
	)

	quality := QualityScore(
		in.Bundle.Canvas,
		in.Bundle.WebGL,
		in.Bundle.Fonts,
		in.Bundle.ScreenResolution,
		in.Bundle.Timezone,
		in.Bundle.Language,
	)

	now := time.Now().UTC()
	rec := &Record{
		VisitID:   uuid.NewString(),
		Timestamp: now,
		CreatedAt: now,

		IPAddress: clientIP,
		IsProxy:   in.IsProxy,

		UserAgent: in.UserAgent,
		Referrer:  in.Referrer,
		PageURL:   in.PageURL,

		DeviceType:     cls.DeviceType,
		Browser:        cls.Browser,
		BrowserVersion: cls.BrowserVersion,
		OS:             cls.OS,
		OSVersion:      cls.OSVersion,
		IsBot:          cls.Bot,

		Bundle: in.Bundle,

		AuthenticityScore: InitialScore(quality, in.Bundle.Headless),
		FingerprintHash:   hash,
		RawData:           in.RawData,
	}
	if loc != nil {
		country, city := loc.CountryCode, loc.City
		if country != "" {
			rec.IPCountry = &country
		}
		if city != "" {
			rec.IPCity = &city
		}
	}

	if err := s.store.InsertVisit(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert visit: %w", err)
	}

	s.log.Debug().
		Str("visit_id", rec.VisitID).
		Str("device_type", rec.DeviceType).
		Float64("score", rec.AuthenticityScore).
		Msg("visit created")

	s.publish(Event{
		Type:            EventVisitCreated,
		TS:              now.Format(time.RFC3339Nano),
		VisitID:         rec.VisitID,
		FingerprintHash: rec.FingerprintHash,
		IPAddress:       rec.IPAddress,
		DeviceType:      rec.DeviceType,
		Score:           rec.AuthenticityScore,
	})
	return rec, nil
}

// BehaviorInput carries the optional behavior beacon. Each field updates
// the record only when present; an omitted field keeps its prior value,
// which is distinct from an explicit zero.
type BehaviorInput struct {
	StayDuration   *int
	ScrollDepth    *int
	MouseMovements *string
}

// RecordBehavior amends an existing visit with behavioral telemetry and
// applies the one-shot score bonus against the values as updated by this
// beacon. Returns ErrNotFound (no mutation) when the visit id is unknown.
// A duplicate beacon still refreshes the behavioral fields, but the bonus
// is never applied twice.
func (s *Service) RecordBehavior(ctx context.Context, visitID string, in BehaviorInput) (*Record, error) {
	rec, err := s.store.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if in.StayDuration != nil {
		rec.StayDuration = *in.StayDuration
	}
	if in.ScrollDepth != nil {
		rec.ScrollDepth = *in.ScrollDepth
	}
	if in.MouseMovements != nil {
		rec.MouseMovements = in.MouseMovements
	}

	if !rec.BehaviorScored {
		rec.AuthenticityScore = ApplyBonus(rec.AuthenticityScore, BehaviorBonus(rec.StayDuration, rec.ScrollDepth))
		rec.BehaviorScored = true
	}

	if err := s.store.UpdateBehavior(ctx, rec); err != nil {
		return nil, fmt.Errorf("update behavior: %w", err)
	}

	s.log.Debug().
		Str("visit_id", rec.VisitID).
		Float64("score", rec.AuthenticityScore).
		Msg("behavior recorded")

	s.publish(Event{
		Type:       EventBehaviorUpdated,
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
		VisitID:    rec.VisitID,
		DeviceType: rec.DeviceType,
		Score:      rec.AuthenticityScore,
	})
	return rec, nil
}

func (s *Service) publish(ev Event) {
	if s.emit != nil {
		s.emit(ev)
	}
}
