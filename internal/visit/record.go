package visit

import "time"

// Device types produced by user-agent classification.
const (
	DevicePC     = "pc"
	DeviceMobile = "mobile"
	DeviceTablet = "tablet"
	DeviceBot    = "bot"
)

// Record is the persisted visit aggregate. The id is a server-generated
// opaque identifier, distinct from the fingerprint hash: many visits may
// share one fingerprint.
type Record struct {
	ID        int64     `json:"id,omitempty"`
	VisitID   string    `json:"visit_id"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Network origin
	IPAddress string  `json:"ip_address"`
	IPCountry *string `json:"ip_country,omitempty"`
	IPCity    *string `json:"ip_city,omitempty"`
	IsProxy   bool    `json:"is_proxy"`

	// Request metadata
	UserAgent string  `json:"user_agent,omitempty"`
	Referrer  *string `json:"referrer,omitempty"`
	PageURL   string  `json:"page_url"`

	// Classification from user-agent parsing
	DeviceType     string `json:"device_type"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	OSVersion      string `json:"os_version,omitempty"`
	IsBot          bool   `json:"is_bot"`

	// Immutable fingerprint bundle captured at first contact.
	Bundle Bundle `json:"bundle"`

	// Behavioral fields, populated only by the behavior beacon.
	StayDuration   int     `json:"stay_duration"`
	ScrollDepth    int     `json:"scroll_depth"`
	MouseMovements *string `json:"mouse_movements,omitempty"`

	// BehaviorScored records that the one-shot behavioral bonus has been
	// applied, so a duplicate beacon cannot add it twice.
	BehaviorScored bool `json:"behavior_scored,omitempty"`

	AuthenticityScore float64 `json:"authenticity_score"`
	FingerprintHash   string  `json:"fingerprint_hash"`

	// Raw payload backup, stored verbatim for audit.
	RawData *string `json:"raw_data,omitempty"`
}
