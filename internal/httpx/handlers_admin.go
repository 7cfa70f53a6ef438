package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/adalliance/tracker/internal/export"
	"github.com/adalliance/tracker/internal/store"
	"github.com/adalliance/tracker/internal/visit"
)

const dateLayout = "2006-01-02"

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// Login exchanges admin credentials for a bearer token.
func (e Env) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, e.Cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := e.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	if err := e.Creds.Verify(req.Username, req.Password); err != nil {
		e.Log.Warn().Str("username", req.Username).Msg("failed admin login")
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := e.Auth.GenerateToken(req.Username)
	if err != nil {
		e.Log.Error().Err(err).Msg("token generation failed")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(e.Auth.TTL().Seconds()),
	})
}

// visitFilter parses the shared list/export query parameters.
func visitFilter(r *http.Request) (store.Filter, error) {
	var f store.Filter
	q := r.URL.Query()

	if dt := q.Get("device_type"); dt != "" {
		switch dt {
		case visit.DevicePC, visit.DeviceMobile, visit.DeviceTablet, visit.DeviceBot:
			f.DeviceType = dt
		default:
			return f, errors.New("invalid device_type")
		}
	}
	if ms := q.Get("min_score"); ms != "" {
		v, err := strconv.ParseFloat(ms, 64)
		if err != nil || v < 0 || v > 100 {
			return f, errors.New("min_score must be a number between 0 and 100")
		}
		f.MinScore = &v
	}
	if s := q.Get("start"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, errors.New("start must be YYYY-MM-DD")
		}
		f.Start = &t
	}
	if s := q.Get("end"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, errors.New("end must be YYYY-MM-DD")
		}
		// The filter bound is exclusive; shift by a day so the named end
		// date is included.
		t = t.Add(24 * time.Hour)
		f.End = &t
	}
	return f, nil
}

type listResponse struct {
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Visits []*visit.Record `json:"visits"`
}

func (e Env) ListVisits(w http.ResponseWriter, r *http.Request) {
	f, err := visitFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = v
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		offset = v
	}

	total, err := e.Store.CountVisits(r.Context(), f)
	if err != nil {
		e.Log.Error().Err(err).Msg("count visits failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	records, err := e.Store.ListVisits(r.Context(), f, limit, offset)
	if err != nil {
		e.Log.Error().Err(err).Msg("list visits failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if records == nil {
		records = []*visit.Record{}
	}

	writeJSON(w, http.StatusOK, listResponse{Total: total, Limit: limit, Offset: offset, Visits: records})
}

// visitDetail is a record plus how many visits share its fingerprint,
// which is the first thing an operator checks on a suspicious entry.
type visitDetail struct {
	*visit.Record
	FingerprintVisits int `json:"fingerprint_visits"`
}

func (e Env) GetVisit(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "visitID")
	rec, err := e.Store.GetVisit(r.Context(), visitID)
	if err != nil {
		if errors.Is(err, visit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "visit not found")
			return
		}
		e.Log.Error().Err(err).Str("visit_id", visitID).Msg("get visit failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	shared, err := e.Store.CountByFingerprint(r.Context(), rec.FingerprintHash)
	if err != nil {
		e.Log.Error().Err(err).Str("visit_id", visitID).Msg("fingerprint count failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, visitDetail{Record: rec, FingerprintVisits: shared})
}

func (e Env) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "visitID")
	if err := e.Store.DeleteVisit(r.Context(), visitID); err != nil {
		if errors.Is(err, visit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "visit not found")
			return
		}
		e.Log.Error().Err(err).Str("visit_id", visitID).Msg("delete visit failed")
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "visit_id": visitID})
}

func (e Env) ClearVisits(w http.ResponseWriter, r *http.Request) {
	n, err := e.Store.DeleteAll(r.Context())
	if err != nil {
		e.Log.Error().Err(err).Msg("clear visits failed")
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	e.Log.Info().Int64("deleted", n).Str("admin", AdminUser(r.Context())).Msg("visits cleared")
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// statsDays parses the shared ?days= parameter, clamped to a year.
func statsDays(r *http.Request) (int, error) {
	days := 7
	if s := r.URL.Query().Get("days"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 365 {
			return 0, errors.New("days must be between 1 and 365")
		}
		days = v
	}
	return days, nil
}

func (e Env) StatsSummary(w http.ResponseWriter, r *http.Request) {
	days, err := statsDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := e.Store.Summary(r.Context(), days, time.Now().UTC())
	if err != nil {
		e.Log.Error().Err(err).Msg("stats summary failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (e Env) StatsTrend(w http.ResponseWriter, r *http.Request) {
	days, err := statsDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := e.Store.Trend(r.Context(), days, time.Now().UTC())
	if err != nil {
		e.Log.Error().Err(err).Msg("stats trend failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if points == nil {
		points = []store.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "trend": points})
}

func (e Env) StatsDevices(w http.ResponseWriter, r *http.Request) {
	days, err := statsDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := e.Store.DeviceStats(r.Context(), days, time.Now().UTC())
	if err != nil {
		e.Log.Error().Err(err).Msg("device stats failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (e Env) StatsLocations(w http.ResponseWriter, r *http.Request) {
	days, err := statsDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := e.Store.LocationStats(r.Context(), days, time.Now().UTC())
	if err != nil {
		e.Log.Error().Err(err).Msg("location stats failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Export streams the (filtered) visit set as a CSV or JSON download.
func (e Env) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := visitFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := e.Cfg.MaxExportRows
	if limit <= 0 {
		limit = 10000
	}
	records, err := e.Store.ListVisits(r.Context(), f, limit, 0)
	if err != nil {
		e.Log.Error().Err(err).Msg("export query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	now := time.Now().UTC()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(now)+`"`)
	w.WriteHeader(http.StatusOK)

	switch format {
	case export.FormatJSON:
		err = export.WriteJSON(w, records, now)
	default:
		err = export.WriteCSV(w, records)
	}
	if err != nil {
		// Headers already sent; all we can do is log.
		e.Log.Error().Err(err).Msg("export write failed")
	}
}
