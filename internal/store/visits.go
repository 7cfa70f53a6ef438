package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adalliance/tracker/internal/visit"
)

// visitColumns is the scan order used by every row-returning query.
const visitColumns = `id, visit_id, timestamp, created_at,
	ip_address, ip_country, ip_city, is_proxy,
	user_agent, referrer, page_url,
	device_type, browser, browser_version, os, os_version, is_bot,
	screen_resolution, timezone, language, platform,
	canvas_fingerprint, webgl_fingerprint, fonts_hash, is_headless, extra_signals,
	stay_duration, scroll_depth, mouse_movements, behavior_scored,
	authenticity_score, fingerprint_hash, raw_data`

// InsertVisit persists a new record and fills in its row id. The unique
// constraint on visit_id makes creation all-or-nothing.
func (s *Store) InsertVisit(ctx context.Context, r *visit.Record) error {
	extra, err := marshalExtraSignals(r.Bundle)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO visits (
		visit_id, timestamp, created_at,
		ip_address, ip_country, ip_city, is_proxy,
		user_agent, referrer, page_url,
		device_type, browser, browser_version, os, os_version, is_bot,
		screen_resolution, timezone, language, platform,
		canvas_fingerprint, webgl_fingerprint, fonts_hash, is_headless, extra_signals,
		stay_duration, scroll_depth, mouse_movements, behavior_scored,
		authenticity_score, fingerprint_hash, raw_data
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.VisitID, fmtTime(r.Timestamp), fmtTime(r.CreatedAt),
		r.IPAddress, nullStr(r.IPCountry), nullStr(r.IPCity), r.IsProxy,
		r.UserAgent, nullStr(r.Referrer), r.PageURL,
		r.DeviceType, r.Browser, r.BrowserVersion, r.OS, r.OSVersion, r.IsBot,
		nullStr(r.Bundle.ScreenResolution), nullStr(r.Bundle.Timezone), nullStr(r.Bundle.Language), nullStr(r.Bundle.Platform),
		nullStr(r.Bundle.Canvas), nullStr(r.Bundle.WebGL), nullStr(r.Bundle.Fonts), r.Bundle.Headless, extra,
		r.StayDuration, r.ScrollDepth, nullStr(r.MouseMovements), r.BehaviorScored,
		r.AuthenticityScore, r.FingerprintHash, nullStr(r.RawData),
	)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// GetVisit looks a record up by its opaque visit id.
func (s *Store) GetVisit(ctx context.Context, visitID string) (*visit.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+visitColumns+" FROM visits WHERE visit_id = ?", visitID)
	r, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, visit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return r, nil
}

// UpdateBehavior writes back the mutable behavioral fields and the score.
// The fingerprint bundle and everything else from first contact stay
// untouched.
func (s *Store) UpdateBehavior(ctx context.Context, r *visit.Record) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE visits
	SET stay_duration = ?, scroll_depth = ?, mouse_movements = ?,
		behavior_scored = ?, authenticity_score = ?
	WHERE visit_id = ?`,
		r.StayDuration, r.ScrollDepth, nullStr(r.MouseMovements),
		r.BehaviorScored, r.AuthenticityScore, r.VisitID,
	)
	if err != nil {
		return fmt.Errorf("update behavior: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return visit.ErrNotFound
	}
	return nil
}

// DeleteVisit removes one record by visit id.
func (s *Store) DeleteVisit(ctx context.Context, visitID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM visits WHERE visit_id = ?", visitID)
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return visit.ErrNotFound
	}
	return nil
}

// DeleteAll clears the visits table and reports how many rows went.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM visits")
	if err != nil {
		return 0, fmt.Errorf("delete all visits: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountByFingerprint counts visits sharing one fingerprint hash. The hash
// is deliberately not unique: the same device visiting twice produces two
// records.
func (s *Store) CountByFingerprint(ctx context.Context, hash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(id) FROM visits WHERE fingerprint_hash = ?", hash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by fingerprint: %w", err)
	}
	return n, nil
}

// ListVisits returns a page of records matching f, newest first.
func (s *Store) ListVisits(ctx context.Context, f Filter, limit, offset int) ([]*visit.Record, error) {
	where, args := f.whereClause()
	q := "SELECT " + visitColumns + " FROM visits" + where +
		" ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []*visit.Record
	for rows.Next() {
		r, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("list visits: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return out, nil
}

// CountVisits counts records matching f.
func (s *Store) CountVisits(ctx context.Context, f Filter) (int, error) {
	where, args := f.whereClause()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(id) FROM visits"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*visit.Record, error) {
	var (
		r                      visit.Record
		ts, created            string
		country, city          sql.NullString
		referrer               sql.NullString
		screen, tz, lang, plat sql.NullString
		canvas, webgl, fonts   sql.NullString
		extra                  sql.NullString
		mouse, raw             sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.VisitID, &ts, &created,
		&r.IPAddress, &country, &city, &r.IsProxy,
		&r.UserAgent, &referrer, &r.PageURL,
		&r.DeviceType, &r.Browser, &r.BrowserVersion, &r.OS, &r.OSVersion, &r.IsBot,
		&screen, &tz, &lang, &plat,
		&canvas, &webgl, &fonts, &r.Bundle.Headless, &extra,
		&r.StayDuration, &r.ScrollDepth, &mouse, &r.BehaviorScored,
		&r.AuthenticityScore, &r.FingerprintHash, &raw,
	)
	if err != nil {
		return nil, err
	}

	r.Timestamp = parseTime(ts)
	r.CreatedAt = parseTime(created)
	r.IPCountry = strNull(country)
	r.IPCity = strNull(city)
	r.Referrer = strNull(referrer)
	r.Bundle.ScreenResolution = strNull(screen)
	r.Bundle.Timezone = strNull(tz)
	r.Bundle.Language = strNull(lang)
	r.Bundle.Platform = strNull(plat)
	r.Bundle.Canvas = strNull(canvas)
	r.Bundle.WebGL = strNull(webgl)
	r.Bundle.Fonts = strNull(fonts)
	r.MouseMovements = strNull(mouse)
	r.RawData = strNull(raw)
	if err := unmarshalExtraSignals(extra, &r.Bundle); err != nil {
		return nil, err
	}
	return &r, nil
}
