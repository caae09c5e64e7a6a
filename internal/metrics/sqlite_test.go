package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T) *SQLiteSource {
	t.Helper()
	src, err := NewSQLite(filepath.Join(t.TempDir(), "rollups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() }) //nolint:errcheck
	require.NoError(t, src.Migrate(context.Background()))
	return src
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSQLiteSource_SearchDaily_RoundTrip(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	rows := []SearchDaily{
		{Date: day("2026-08-01"), Page: "/services/a", Clicks: 10, Impressions: 200, CTR: 0.05, Position: 4.2},
		{Date: day("2026-08-02"), Page: "/services/a", Clicks: 12, Impressions: 210, CTR: 0.057, Position: 4.1},
		{Date: day("2026-08-02"), Page: "/blog/x", Clicks: 3, Impressions: 90, CTR: 0.033, Position: 8.9},
	}
	require.NoError(t, src.InsertSearchDaily(ctx, "site-1", rows))

	got, err := src.SearchDaily(ctx, "site-1", day("2026-08-01"), day("2026-08-02"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "/services/a", got[0].Page)
	assert.Equal(t, 10.0, got[0].Clicks)
	assert.Equal(t, day("2026-08-01"), got[0].Date)
	assert.Equal(t, day("2026-08-02"), got[2].Date)

	// Other site and out-of-range dates excluded.
	got, err = src.SearchDaily(ctx, "site-2", day("2026-08-01"), day("2026-08-02"))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = src.SearchDaily(ctx, "site-1", day("2026-08-03"), day("2026-08-09"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteSource_SearchDaily_Upsert(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	row := SearchDaily{Date: day("2026-08-01"), Page: "/p", Clicks: 5}
	require.NoError(t, src.InsertSearchDaily(ctx, "site-1", []SearchDaily{row}))
	row.Clicks = 9
	require.NoError(t, src.InsertSearchDaily(ctx, "site-1", []SearchDaily{row}))

	got, err := src.SearchDaily(ctx, "site-1", day("2026-08-01"), day("2026-08-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, got[0].Clicks)
}

func TestSQLiteSource_AnalyticsDaily_RoundTrip(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	rows := []AnalyticsDaily{
		{Date: day("2026-08-01"), LandingPage: "/services/a", Sessions: 40, Users: 35, Conversions: 2},
	}
	require.NoError(t, src.InsertAnalyticsDaily(ctx, "site-1", rows))

	got, err := src.AnalyticsDaily(ctx, "site-1", day("2026-08-01"), day("2026-08-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 40.0, got[0].Sessions)
	assert.Equal(t, day("2026-08-01"), got[0].Date)
}

func TestSQLiteSource_PageChecks_RoundTrip(t *testing.T) {
	src := newTestSource(t)
	ctx := context.Background()

	rows := []PageCheck{
		{
			URL: "https://example.com/services/a", Date: day("2026-08-02"),
			HTTPStatus: 200, Canonical: "https://example.com/services/a",
			RobotsDisallowed: true, HasAnalyticsTag: true, TextLength: 1200,
		},
	}
	require.NoError(t, src.InsertPageChecks(ctx, "site-1", rows))

	got, err := src.PageChecks(ctx, "site-1", day("2026-08-01"), day("2026-08-03"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].RobotsDisallowed)
	assert.True(t, got[0].HasAnalyticsTag)
	assert.Equal(t, 1200, got[0].TextLength)
	assert.Equal(t, day("2026-08-02"), got[0].Date)
}
