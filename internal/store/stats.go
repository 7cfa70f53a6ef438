package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// Summary is the dashboard headline block.
type Summary struct {
	TotalVisits        int            `json:"total_visits"`
	TodayVisits        int            `json:"today_visits"`
	YesterdayVisits    int            `json:"yesterday_visits"`
	PeriodVisits       int            `json:"period_visits"`
	PeriodDays         int            `json:"period_days"`
	AvgScore           float64        `json:"avg_authenticity_score"`
	DeviceDistribution map[string]int `json:"device_distribution"`
	BotVisits          int            `json:"bot_visits"`
	BotRate            float64        `json:"bot_rate"`
}

// TrendPoint is one day in the visit trend.
type TrendPoint struct {
	Date     string  `json:"date"`
	Visits   int     `json:"visits"`
	AvgScore float64 `json:"avg_score"`
}

// NameCount is a generic grouped counter.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DeviceStats groups visits by device type, browser, and OS.
type DeviceStats struct {
	Devices          []NameCount `json:"devices"`
	Browsers         []NameCount `json:"browsers"`
	OperatingSystems []NameCount `json:"operating_systems"`
}

// CityCount is a city grouped counter with its country.
type CityCount struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Count   int    `json:"count"`
}

// LocationStats groups visits by country and city.
type LocationStats struct {
	Countries []NameCount `json:"countries"`
	Cities    []CityCount `json:"cities"`
}

// Summary computes the dashboard summary over the last days, relative to
// now.
func (s *Store) Summary(ctx context.Context, days int, now time.Time) (*Summary, error) {
	now = now.UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	periodStart := todayStart.AddDate(0, 0, -days)

	sum := &Summary{PeriodDays: days, DeviceDistribution: map[string]int{}}

	count := func(q string, args ...any) (int, error) {
		var n int
		err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
		return n, err
	}

	var err error
	if sum.TotalVisits, err = count("SELECT COUNT(id) FROM visits"); err != nil {
		return nil, fmt.Errorf("summary total: %w", err)
	}
	if sum.TodayVisits, err = count("SELECT COUNT(id) FROM visits WHERE timestamp >= ?", fmtTime(todayStart)); err != nil {
		return nil, fmt.Errorf("summary today: %w", err)
	}
	if sum.YesterdayVisits, err = count(
		"SELECT COUNT(id) FROM visits WHERE timestamp >= ? AND timestamp < ?",
		fmtTime(yesterdayStart), fmtTime(todayStart)); err != nil {
		return nil, fmt.Errorf("summary yesterday: %w", err)
	}
	if sum.PeriodVisits, err = count("SELECT COUNT(id) FROM visits WHERE timestamp >= ?", fmtTime(periodStart)); err != nil {
		return nil, fmt.Errorf("summary period: %w", err)
	}
	if sum.BotVisits, err = count(
		"SELECT COUNT(id) FROM visits WHERE timestamp >= ? AND is_bot = 1", fmtTime(periodStart)); err != nil {
		return nil, fmt.Errorf("summary bots: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT AVG(authenticity_score) FROM visits WHERE timestamp >= ?",
		fmtTime(periodStart)).Scan(&avg); err != nil {
		return nil, fmt.Errorf("summary avg score: %w", err)
	}
	if avg.Valid {
		sum.AvgScore = round2(avg.Float64)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT COALESCE(device_type, 'unknown'), COUNT(id)
	FROM visits WHERE timestamp >= ? GROUP BY device_type`, fmtTime(periodStart))
	if err != nil {
		return nil, fmt.Errorf("summary devices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("summary devices: %w", err)
		}
		if name == "" {
			name = "unknown"
		}
		sum.DeviceDistribution[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary devices: %w", err)
	}

	if sum.PeriodVisits > 0 {
		sum.BotRate = round2(float64(sum.BotVisits) / float64(sum.PeriodVisits) * 100)
	}
	return sum, nil
}

// Trend buckets visits per day over the last days.
func (s *Store) Trend(ctx context.Context, days int, now time.Time) ([]TrendPoint, error) {
	periodStart := now.UTC().AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
	SELECT date(timestamp), COUNT(id), AVG(authenticity_score)
	FROM visits WHERE timestamp >= ?
	GROUP BY date(timestamp) ORDER BY date(timestamp)`, fmtTime(periodStart))
	if err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var avg sql.NullFloat64
		if err := rows.Scan(&p.Date, &p.Visits, &avg); err != nil {
			return nil, fmt.Errorf("trend: %w", err)
		}
		if avg.Valid {
			p.AvgScore = round2(avg.Float64)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	return out, nil
}

// DeviceStats returns device type counts plus the top browsers and
// operating systems over the last days.
func (s *Store) DeviceStats(ctx context.Context, days int, now time.Time) (*DeviceStats, error) {
	since := fmtTime(now.UTC().AddDate(0, 0, -days))
	stats := &DeviceStats{}
	var err error

	if stats.Devices, err = s.nameCounts(ctx, `
	SELECT COALESCE(NULLIF(device_type, ''), 'unknown'), COUNT(id)
	FROM visits WHERE timestamp >= ? GROUP BY device_type`, since); err != nil {
		return nil, fmt.Errorf("device stats: %w", err)
	}
	if stats.Browsers, err = s.nameCounts(ctx, `
	SELECT browser, COUNT(id) AS n
	FROM visits WHERE timestamp >= ? AND browser != ''
	GROUP BY browser ORDER BY n DESC LIMIT 10`, since); err != nil {
		return nil, fmt.Errorf("browser stats: %w", err)
	}
	if stats.OperatingSystems, err = s.nameCounts(ctx, `
	SELECT os, COUNT(id) AS n
	FROM visits WHERE timestamp >= ? AND os != ''
	GROUP BY os ORDER BY n DESC LIMIT 10`, since); err != nil {
		return nil, fmt.Errorf("os stats: %w", err)
	}
	return stats, nil
}

// LocationStats returns the top countries and cities over the last days.
func (s *Store) LocationStats(ctx context.Context, days int, now time.Time) (*LocationStats, error) {
	since := fmtTime(now.UTC().AddDate(0, 0, -days))
	stats := &LocationStats{}
	var err error

	if stats.Countries, err = s.nameCounts(ctx, `
	SELECT ip_country, COUNT(id) AS n
	FROM visits WHERE timestamp >= ? AND ip_country IS NOT NULL
	GROUP BY ip_country ORDER BY n DESC LIMIT 15`, since); err != nil {
		return nil, fmt.Errorf("country stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT COALESCE(ip_country, ''), ip_city, COUNT(id) AS n
	FROM visits WHERE timestamp >= ? AND ip_city IS NOT NULL
	GROUP BY ip_country, ip_city ORDER BY n DESC LIMIT 15`, since)
	if err != nil {
		return nil, fmt.Errorf("city stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CityCount
		if err := rows.Scan(&c.Country, &c.City, &c.Count); err != nil {
			return nil, fmt.Errorf("city stats: %w", err)
		}
		stats.Cities = append(stats.Cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("city stats: %w", err)
	}
	return stats, nil
}

func (s *Store) nameCounts(ctx context.Context, query string, args ...any) ([]NameCount, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
