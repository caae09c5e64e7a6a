package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankpulse/diagnose-cli/internal/cluster"
	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/metrics"
	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/window"
)

func testCfg() config.DiagnosisConfig {
	return config.DiagnosisConfig{
		CurrentWindowDays:  3,
		BaselineWindowDays: 14,
		DropPct:            -30,
		ZScore:             -2,
		MinBaselineDays:    7,
		ClusterLossShare:   0.6,
	}
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func buildAgg(t *testing.T, baselineClicks, currentClicks float64) *window.Aggregates {
	t.Helper()
	cfg := testCfg()
	asOf := day("2026-08-20")
	w := window.For(asOf, cfg)

	var rows []metrics.SearchDaily
	for d := w.BaselineFrom; !d.After(w.BaselineTo); d = d.AddDate(0, 0, 1) {
		rows = append(rows, metrics.SearchDaily{Date: d, Page: "/services/a", Clicks: baselineClicks, Impressions: 10000, Position: 5})
	}
	for d := w.CurrentFrom; !d.After(w.CurrentTo); d = d.AddDate(0, 0, 1) {
		rows = append(rows, metrics.SearchDaily{Date: d, Page: "/services/a", Clicks: currentClicks, Impressions: 10000, Position: 5})
	}
	return window.Compute(rows, nil, asOf, cfg, cluster.DefaultRuleSet())
}

func findMetric(anomalies []model.Anomaly, metric string) *model.Anomaly {
	for i, a := range anomalies {
		if a.Metric == metric && a.TopScope() {
			return &anomalies[i]
		}
	}
	return nil
}

func TestDetect_PctRuleFlagsForty(t *testing.T) {
	// Baseline mean 1000, current 600: the -30% rule must flag regardless of
	// z-score availability (flat baseline means no z-score here).
	agg := buildAgg(t, 1000, 600)
	anomalies := Detect("run-1", agg, testCfg())

	a := findMetric(anomalies, model.MetricClicks)
	require.NotNil(t, a)
	assert.Equal(t, model.AnomalyTrafficDrop, a.Type)
	assert.InDelta(t, -40, a.DeltaPct, 1e-9)
	assert.Equal(t, 1000.0, a.Baseline)
	assert.Equal(t, 600.0, a.Observed)
	assert.Nil(t, a.ZScore) // zero-variance baseline: no z-score
	assert.Equal(t, day("2026-08-18"), a.StartDate)
	assert.Equal(t, day("2026-08-20"), a.EndDate)
	assert.True(t, HasTopScopeDrop(anomalies))
}

func TestDetect_ZScoreRule(t *testing.T) {
	// A drop below -30% is impossible here (-20%), but the baseline variance
	// is tiny so the z-score rule still fires.
	cfg := testCfg()
	asOf := day("2026-08-20")
	w := window.For(asOf, cfg)

	var rows []metrics.SearchDaily
	clicks := []float64{1000, 1002, 998, 1001, 999, 1000, 1003, 997, 1000, 1001, 999, 1002, 998, 1000}
	i := 0
	for d := w.BaselineFrom; !d.After(w.BaselineTo); d = d.AddDate(0, 0, 1) {
		rows = append(rows, metrics.SearchDaily{Date: d, Page: "/p", Clicks: clicks[i], Impressions: 10000, Position: 5})
		i++
	}
	for d := w.CurrentFrom; !d.After(w.CurrentTo); d = d.AddDate(0, 0, 1) {
		rows = append(rows, metrics.SearchDaily{Date: d, Page: "/p", Clicks: 800, Impressions: 10000, Position: 5})
	}

	agg := window.Compute(rows, nil, asOf, cfg, cluster.DefaultRuleSet())
	anomalies := Detect("run-1", agg, cfg)

	a := findMetric(anomalies, model.MetricClicks)
	require.NotNil(t, a)
	require.NotNil(t, a.ZScore)
	assert.Less(t, *a.ZScore, cfg.ZScore)
	assert.Greater(t, a.DeltaPct, cfg.DropPct) // pct rule alone would not fire
}

func TestDetect_InsufficientBaselineEmitsNothing(t *testing.T) {
	cfg := testCfg()
	asOf := day("2026-08-20")
	w := window.For(asOf, cfg)

	// Current-window data only: every baseline is empty.
	var rows []metrics.SearchDaily
	for d := w.CurrentFrom; !d.After(w.CurrentTo); d = d.AddDate(0, 0, 1) {
		rows = append(rows, metrics.SearchDaily{Date: d, Page: "/p", Clicks: 100, Impressions: 1000, Position: 5})
	}

	agg := window.Compute(rows, nil, asOf, cfg, cluster.DefaultRuleSet())
	anomalies := Detect("run-1", agg, cfg)
	assert.Empty(t, anomalies)
	assert.False(t, HasTopScopeDrop(anomalies))
}

func TestDetect_ClusterScope(t *testing.T) {
	agg := buildAgg(t, 1000, 300)
	anomalies := Detect("run-1", agg, testCfg())

	var clusterAnomaly *model.Anomaly
	for i, a := range anomalies {
		if a.Type == model.AnomalyPageClusterDrop {
			clusterAnomaly = &anomalies[i]
		}
	}
	require.NotNil(t, clusterAnomaly)
	assert.Equal(t, "/services/*", clusterAnomaly.Scope["cluster"])
	assert.False(t, clusterAnomaly.TopScope())
}

func TestDetect_TrackingGapWhenFamiliesDisagree(t *testing.T) {
	cfg := testCfg()
	asOf := day("2026-08-20")
	w := window.For(asOf, cfg)

	// Search flat.
	var search []metrics.SearchDaily
	for d := w.BaselineFrom; !d.After(w.CurrentTo); d = d.AddDate(0, 0, 1) {
		search = append(search, metrics.SearchDaily{Date: d, Page: "/p", Clicks: 500, Impressions: 10000, Position: 5})
	}
	// Analytics sessions down 90%.
	var analytics []metrics.AnalyticsDaily
	for d := w.BaselineFrom; !d.After(w.BaselineTo); d = d.AddDate(0, 0, 1) {
		analytics = append(analytics, metrics.AnalyticsDaily{Date: d, LandingPage: "/p", Sessions: 400, Users: 300})
	}
	for d := w.CurrentFrom; !d.After(w.CurrentTo); d = d.AddDate(0, 0, 1) {
		analytics = append(analytics, metrics.AnalyticsDaily{Date: d, LandingPage: "/p", Sessions: 40, Users: 30})
	}

	agg := window.Compute(search, analytics, asOf, cfg, cluster.DefaultRuleSet())
	anomalies := Detect("run-1", agg, cfg)

	a := findMetric(anomalies, model.MetricSessions)
	require.NotNil(t, a)
	assert.Equal(t, model.AnomalyTrackingGap, a.Type)
	assert.Equal(t, "analytics", a.Scope["channel"])

	// Clicks stayed flat: no search anomaly.
	assert.Nil(t, findMetric(anomalies, model.MetricClicks))
}

func TestDetect_NoDropNoAnomalies(t *testing.T) {
	agg := buildAgg(t, 1000, 950)
	anomalies := Detect("run-1", agg, testCfg())
	assert.Empty(t, anomalies)
}
