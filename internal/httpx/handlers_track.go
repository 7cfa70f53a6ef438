package httpx

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adalliance/tracker/internal/visit"
)

type trackRequest struct {
	PageURL     string       `json:"page_url" validate:"required,max=2048"`
	Referrer    *string      `json:"referrer" validate:"omitempty,max=2048"`
	IsProxy     bool         `json:"is_proxy"`
	Fingerprint visit.Bundle `json:"fingerprint"`
}

type trackResponse struct {
	VisitID           string    `json:"visit_id"`
	Timestamp         time.Time `json:"timestamp"`
	IPAddress         string    `json:"ip_address"`
	FingerprintHash   string    `json:"fingerprint_hash"`
	AuthenticityScore float64   `json:"authenticity_score"`
	DeviceType        string    `json:"device_type"`
	IsBot             bool      `json:"is_bot"`
}

// Track handles the first-contact beacon: it creates the visit record and
// returns the server-assigned visit id for the follow-up behavior beacon.
func (e Env) Track(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req trackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := e.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	// A Via header, or forwarding headers when no trusted proxy is
	// configured, indicate an intermediary between us and the client.
	isProxy := req.IsProxy
	if r.Header.Get("Via") != "" {
		isProxy = true
	}
	if !e.Cfg.TrustProxy && (r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("X-Real-IP") != "") {
		isProxy = true
	}

	raw := string(body)
	rec, err := e.Service.CreateVisit(r.Context(), visit.CreateInput{
		UserAgent: r.UserAgent(),
		PageURL:   req.PageURL,
		Referrer:  req.Referrer,
		Bundle:    req.Fingerprint,
		IsProxy:   isProxy,
		RawData:   &raw,
	}, ClientIP(r, e.Cfg.TrustProxy))
	if err != nil {
		e.Log.Error().Err(err).Msg("create visit failed")
		writeError(w, http.StatusInternalServerError, "failed to record visit")
		return
	}

	if e.Metrics != nil {
		e.Metrics.IncrementVisitsCreated(rec.DeviceType)
		e.Metrics.ObserveAuthenticityScore(rec.AuthenticityScore)
	}

	writeJSON(w, http.StatusCreated, trackResponse{
		VisitID:           rec.VisitID,
		Timestamp:         rec.Timestamp,
		IPAddress:         rec.IPAddress,
		FingerprintHash:   rec.FingerprintHash,
		AuthenticityScore: rec.AuthenticityScore,
		DeviceType:        rec.DeviceType,
		IsBot:             rec.IsBot,
	})
}

type behaviorRequest struct {
	VisitID        string  `json:"visit_id" validate:"required,max=64"`
	StayDuration   *int    `json:"stay_duration" validate:"omitempty,min=0"`
	ScrollDepth    *int    `json:"scroll_depth" validate:"omitempty,min=0,max=100"`
	MouseMovements *string `json:"mouse_movements"`
}

type behaviorResponse struct {
	VisitID           string  `json:"visit_id"`
	AuthenticityScore float64 `json:"authenticity_score"`
	BehaviorScored    bool    `json:"behavior_scored"`
}

// TrackBehavior handles the optional second beacon carrying behavioral
// telemetry.
func (e Env) TrackBehavior(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req behaviorRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := e.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	rec, err := e.Service.RecordBehavior(r.Context(), req.VisitID, visit.BehaviorInput{
		StayDuration:   req.StayDuration,
		ScrollDepth:    req.ScrollDepth,
		MouseMovements: req.MouseMovements,
	})
	if err != nil {
		if errors.Is(err, visit.ErrNotFound) {
			if e.Metrics != nil {
				e.Metrics.IncrementBehaviorUpdates("not_found")
			}
			writeError(w, http.StatusNotFound, "visit not found")
			return
		}
		e.Log.Error().Err(err).Str("visit_id", req.VisitID).Msg("record behavior failed")
		writeError(w, http.StatusInternalServerError, "failed to update visit")
		return
	}

	if e.Metrics != nil {
		e.Metrics.IncrementBehaviorUpdates("updated")
	}

	writeJSON(w, http.StatusOK, behaviorResponse{
		VisitID:           rec.VisitID,
		AuthenticityScore: rec.AuthenticityScore,
		BehaviorScored:    rec.BehaviorScored,
	})
}

// Ping lets clients verify the collector is reachable before sending
// beacons.
func (e Env) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"ts":     time.Now().UTC().Format(time.RFC3339),
	})
}
