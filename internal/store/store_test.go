package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adalliance/tracker/internal/visit"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(visitID string, ts time.Time) *visit.Record {
	return &visit.Record{
		VisitID:    visitID,
		Timestamp:  ts,
		CreatedAt:  ts,
		IPAddress:  "203.0.113.7",
		IPCountry:  strp("DE"),
		IPCity:     strp("Berlin"),
		UserAgent:  "Mozilla/5.0",
		PageURL:    "https://example.com/",
		DeviceType: visit.DevicePC,
		Browser:    "Chrome",
		OS:         "Linux",
		Bundle: visit.Bundle{
			Canvas:              strp("c-hash"),
			WebGL:               strp("w-hash"),
			ScreenResolution:    strp("1920x1080"),
			Timezone:            strp("Europe/Berlin"),
			Language:            strp("de-DE"),
			HardwareConcurrency: intp(8),
		},
		AuthenticityScore: 80,
		FingerprintHash:   "feedbeef",
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := testRecord("v-1", ts)
	if err := s.InsertVisit(ctx, rec); err != nil {
		t.Fatalf("InsertVisit failed: %v", err)
	}
	if rec.ID == 0 {
		t.Error("row id not assigned")
	}

	got, err := s.GetVisit(ctx, "v-1")
	if err != nil {
		t.Fatalf("GetVisit failed: %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.IPCountry == nil || *got.IPCountry != "DE" {
		t.Errorf("IPCountry = %v, want DE", got.IPCountry)
	}
	if got.Bundle.Canvas == nil || *got.Bundle.Canvas != "c-hash" {
		t.Errorf("Canvas = %v, want c-hash", got.Bundle.Canvas)
	}
	if got.Bundle.Fonts != nil {
		t.Errorf("Fonts = %v, want nil (absent stays absent)", got.Bundle.Fonts)
	}
	if got.Bundle.HardwareConcurrency == nil || *got.Bundle.HardwareConcurrency != 8 {
		t.Errorf("HardwareConcurrency = %v, want 8", got.Bundle.HardwareConcurrency)
	}
	if got.AuthenticityScore != 80 {
		t.Errorf("score = %v, want 80", got.AuthenticityScore)
	}
}

func TestStore_GetVisit_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetVisit(context.Background(), "missing"); !errors.Is(err, visit.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_DuplicateVisitIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()
	if err := s.InsertVisit(ctx, testRecord("v-1", ts)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertVisit(ctx, testRecord("v-1", ts)); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}

func TestStore_SharedFingerprintAllowed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()
	if err := s.InsertVisit(ctx, testRecord("v-1", ts)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertVisit(ctx, testRecord("v-2", ts)); err != nil {
		t.Fatalf("second visit with same fingerprint should insert: %v", err)
	}
	n, err := s.CountByFingerprint(ctx, "feedbeef")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountByFingerprint = %d, want 2", n)
	}
}

func TestStore_UpdateBehavior(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := testRecord("v-1", time.Now().UTC())
	if err := s.InsertVisit(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.StayDuration = 12
	rec.ScrollDepth = 45
	rec.MouseMovements = strp(`[[1,2],[3,4]]`)
	rec.BehaviorScored = true
	rec.AuthenticityScore = 100
	if err := s.UpdateBehavior(ctx, rec); err != nil {
		t.Fatalf("UpdateBehavior failed: %v", err)
	}

	got, err := s.GetVisit(ctx, "v-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.StayDuration != 12 || got.ScrollDepth != 45 || !got.BehaviorScored {
		t.Errorf("behavior fields not persisted: %+v", got)
	}
	if got.AuthenticityScore != 100 {
		t.Errorf("score = %v, want 100", got.AuthenticityScore)
	}
	// Bundle must be untouched by behavior updates.
	if got.Bundle.Canvas == nil || *got.Bundle.Canvas != "c-hash" {
		t.Error("bundle mutated by behavior update")
	}

	if err := s.UpdateBehavior(ctx, testRecord("missing", time.Now())); !errors.Is(err, visit.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.InsertVisit(ctx, testRecord("v-1", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteVisit(ctx, "v-1"); err != nil {
		t.Fatalf("DeleteVisit failed: %v", err)
	}
	if _, err := s.GetVisit(ctx, "v-1"); !errors.Is(err, visit.ErrNotFound) {
		t.Error("record still present after delete")
	}
	if err := s.DeleteVisit(ctx, "v-1"); !errors.Is(err, visit.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()
	for _, id := range []string{"v-1", "v-2", "v-3"} {
		if err := s.InsertVisit(ctx, testRecord(id, ts)); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if n != 3 {
		t.Errorf("DeleteAll = %d, want 3", n)
	}
	total, err := s.CountVisits(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("count after clear = %d, want 0", total)
	}
}

func seedForQueries(t *testing.T, s *Store, now time.Time) {
	t.Helper()
	ctx := context.Background()
	mk := func(id string, age time.Duration, device string, score float64, bot bool, country, city string) {
		r := testRecord(id, now.Add(-age))
		r.DeviceType = device
		r.AuthenticityScore = score
		r.IsBot = bot
		if bot {
			r.Browser, r.OS = "", ""
		}
		r.IPCountry, r.IPCity = strp(country), strp(city)
		if err := s.InsertVisit(ctx, r); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	mk("v-1", time.Hour, visit.DevicePC, 90, false, "DE", "Berlin")
	mk("v-2", 2*time.Hour, visit.DeviceMobile, 60, false, "DE", "Hamburg")
	mk("v-3", 26*time.Hour, visit.DevicePC, 30, false, "FR", "Paris")
	mk("v-4", 30*time.Hour, visit.DeviceBot, 10, true, "US", "Ashburn")
	mk("v-5", 10*24*time.Hour, visit.DevicePC, 80, false, "DE", "Berlin")
}

func TestStore_ListVisits(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedForQueries(t, s, now)
	ctx := context.Background()

	t.Run("newest first with pagination", func(t *testing.T) {
		page1, err := s.ListVisits(ctx, Filter{}, 2, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(page1) != 2 || page1[0].VisitID != "v-1" || page1[1].VisitID != "v-2" {
			t.Errorf("page1 = %v", ids(page1))
		}
		page2, err := s.ListVisits(ctx, Filter{}, 2, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(page2) != 2 || page2[0].VisitID != "v-3" {
			t.Errorf("page2 = %v", ids(page2))
		}
	})

	t.Run("device filter", func(t *testing.T) {
		got, err := s.ListVisits(ctx, Filter{DeviceType: visit.DeviceMobile}, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].VisitID != "v-2" {
			t.Errorf("got %v, want [v-2]", ids(got))
		}
	})

	t.Run("min score filter", func(t *testing.T) {
		min := 60.0
		got, err := s.ListVisits(ctx, Filter{MinScore: &min}, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Errorf("got %v, want 3 records with score >= 60", ids(got))
		}
	})

	t.Run("date range filter", func(t *testing.T) {
		start := now.Add(-24 * time.Hour)
		end := now.Add(time.Hour)
		f := Filter{Start: &start, End: &end}
		got, err := s.ListVisits(ctx, f, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Errorf("got %v, want [v-1 v-2]", ids(got))
		}
		n, err := s.CountVisits(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("CountVisits = %d, want 2", n)
		}
	})
}

func TestStore_Summary(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedForQueries(t, s, now)

	sum, err := s.Summary(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.TotalVisits != 5 {
		t.Errorf("TotalVisits = %d, want 5", sum.TotalVisits)
	}
	if sum.TodayVisits != 2 { // v-1, v-2
		t.Errorf("TodayVisits = %d, want 2", sum.TodayVisits)
	}
	if sum.YesterdayVisits != 2 { // v-3, v-4
		t.Errorf("YesterdayVisits = %d, want 2", sum.YesterdayVisits)
	}
	if sum.PeriodVisits != 4 {
		t.Errorf("PeriodVisits = %d, want 4", sum.PeriodVisits)
	}
	if sum.BotVisits != 1 {
		t.Errorf("BotVisits = %d, want 1", sum.BotVisits)
	}
	if sum.BotRate != 25 {
		t.Errorf("BotRate = %v, want 25", sum.BotRate)
	}
	// (90+60+30+10)/4
	if sum.AvgScore != 47.5 {
		t.Errorf("AvgScore = %v, want 47.5", sum.AvgScore)
	}
	if sum.DeviceDistribution[visit.DevicePC] != 2 || sum.DeviceDistribution[visit.DeviceBot] != 1 {
		t.Errorf("DeviceDistribution = %v", sum.DeviceDistribution)
	}
}

func TestStore_Trend(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedForQueries(t, s, now)

	points, err := s.Trend(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("Trend failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("trend points = %d, want 2 days", len(points))
	}
	if points[0].Date != "2026-08-29" || points[0].Visits != 2 {
		t.Errorf("day 1 = %+v", points[0])
	}
	if points[1].Date != "2026-08-30" || points[1].Visits != 2 || points[1].AvgScore != 75 {
		t.Errorf("day 2 = %+v", points[1])
	}
}

func TestStore_DeviceAndLocationStats(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	seedForQueries(t, s, now)
	ctx := context.Background()

	dev, err := s.DeviceStats(ctx, 7, now)
	if err != nil {
		t.Fatalf("DeviceStats failed: %v", err)
	}
	devices := map[string]int{}
	for _, d := range dev.Devices {
		devices[d.Name] = d.Count
	}
	if devices[visit.DevicePC] != 2 || devices[visit.DeviceMobile] != 1 || devices[visit.DeviceBot] != 1 {
		t.Errorf("devices = %v", devices)
	}
	if len(dev.Browsers) != 1 || dev.Browsers[0].Name != "Chrome" || dev.Browsers[0].Count != 3 {
		t.Errorf("browsers = %v", dev.Browsers)
	}

	loc, err := s.LocationStats(ctx, 7, now)
	if err != nil {
		t.Fatalf("LocationStats failed: %v", err)
	}
	if len(loc.Countries) == 0 || loc.Countries[0].Name != "DE" || loc.Countries[0].Count != 2 {
		t.Errorf("countries = %v", loc.Countries)
	}
	if len(loc.Cities) != 4 {
		t.Errorf("cities = %v", loc.Cities)
	}
}

func ids(records []*visit.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.VisitID
	}
	return out
}
