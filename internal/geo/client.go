package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/adalliance/tracker/internal/visit"
)

// DefaultBaseURL is the free ip-api.com endpoint (no API key, rate-limited
// upstream at 45 req/min).
const DefaultBaseURL = "http://ip-api.com"

const lookupFields = "status,message,country,countryCode,regionName,city"

// Client queries an ip-api.com compatible geolocation service. Lookups are
// time-bounded by the HTTP client timeout; there is no retry.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client against baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type lookupResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
}

// Lookup resolves ip. A non-success API status or transport failure is
// returned as an error; the caller decides whether that degrades to an
// unknown location.
func (c *Client) Lookup(ctx context.Context, ip string) (*visit.Location, error) {
	url := fmt.Sprintf("%s/json/%s?fields=%s", c.baseURL, ip, lookupFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation lookup: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if lr.Status != "success" {
		return nil, fmt.Errorf("geolocation lookup failed: %s", lr.Message)
	}

	return &visit.Location{
		Country:     lr.Country,
		CountryCode: lr.CountryCode,
		Region:      lr.RegionName,
		City:        lr.City,
	}, nil
}
