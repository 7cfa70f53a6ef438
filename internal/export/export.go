// Package export renders visit records for download in CSV or JSON form.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adalliance/tracker/internal/visit"
)

// Format selects an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format query value, defaulting to CSV.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the response content type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns a timestamped attachment name.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("visits_%s.%s", now.UTC().Format("20060102_150405"), string(f))
}

var csvHeader = []string{
	"visit_id", "timestamp", "ip_address", "ip_country", "ip_city", "is_proxy",
	"page_url", "referrer", "device_type", "browser", "browser_version",
	"os", "os_version", "is_bot", "stay_duration", "scroll_depth",
	"authenticity_score", "fingerprint_hash",
}

// WriteCSV streams records as CSV with a header row.
func WriteCSV(w io.Writer, records []*visit.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.VisitID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.IPAddress,
			deref(r.IPCountry),
			deref(r.IPCity),
			strconv.FormatBool(r.IsProxy),
			r.PageURL,
			deref(r.Referrer),
			r.DeviceType,
			r.Browser,
			r.BrowserVersion,
			r.OS,
			r.OSVersion,
			strconv.FormatBool(r.IsBot),
			strconv.Itoa(r.StayDuration),
			strconv.Itoa(r.ScrollDepth),
			strconv.FormatFloat(r.AuthenticityScore, 'f', 1, 64),
			r.FingerprintHash,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonEnvelope matches the shape of the JSON download.
type jsonEnvelope struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Visits     []*visit.Record `json:"visits"`
}

// WriteJSON streams records as a JSON document with an export envelope.
func WriteJSON(w io.Writer, records []*visit.Record, now time.Time) error {
	env := jsonEnvelope{
		ExportedAt: now.UTC(),
		Count:      len(records),
		Visits:     records,
	}
	if env.Visits == nil {
		env.Visits = []*visit.Record{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(env)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
