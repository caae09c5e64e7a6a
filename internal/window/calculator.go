// Package window computes current-vs-baseline aggregates and deltas over
// daily metric rollups.
package window

import (
	"math"
	"sort"
	"time"

	"github.com/rankpulse/diagnose-cli/internal/cluster"
	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/metrics"
	"github.com/rankpulse/diagnose-cli/internal/model"
)

// Windows holds the two comparison date ranges, inclusive on both ends. The
// current window ends at the as-of date; the baseline window immediately
// precedes it.
type Windows struct {
	CurrentFrom  time.Time
	CurrentTo    time.Time
	BaselineFrom time.Time
	BaselineTo   time.Time
}

// For derives the comparison windows from an as-of date and the configured
// window sizes.
func For(asOf time.Time, cfg config.DiagnosisConfig) Windows {
	asOf = asOf.Truncate(24 * time.Hour)
	currentFrom := asOf.AddDate(0, 0, -(cfg.CurrentWindowDays - 1))
	baselineTo := currentFrom.AddDate(0, 0, -1)
	baselineFrom := baselineTo.AddDate(0, 0, -(cfg.BaselineWindowDays - 1))
	return Windows{
		CurrentFrom:  currentFrom,
		CurrentTo:    asOf,
		BaselineFrom: baselineFrom,
		BaselineTo:   baselineTo,
	}
}

// MetricSeries holds per-day values for one metric, split by window. Days
// with no data are absent, not zero.
type MetricSeries struct {
	Baseline []float64
	Current  []float64
}

// Aggregates is the calculator's full output: the run's Deltas snapshot plus
// the per-day series and per-cluster click counts the later stages need.
type Aggregates struct {
	Windows       Windows
	Deltas        model.Deltas
	Series        map[string]MetricSeries
	ClusterCounts map[string]cluster.Counts
}

// Compute builds aggregates for both metric families. Either rollup slice may
// be nil when its family was unavailable; the corresponding deltas come out
// as unavailable rather than zero.
func Compute(search []metrics.SearchDaily, analytics []metrics.AnalyticsDaily, asOf time.Time, cfg config.DiagnosisConfig, rules cluster.RuleSet) *Aggregates {
	w := For(asOf, cfg)

	agg := &Aggregates{
		Windows:       w,
		Series:        make(map[string]MetricSeries),
		ClusterCounts: make(map[string]cluster.Counts),
	}

	clicks := dailyTotals(search, func(r metrics.SearchDaily) (time.Time, float64) { return r.Date, r.Clicks })
	impressions := dailyTotals(search, func(r metrics.SearchDaily) (time.Time, float64) { return r.Date, r.Impressions })
	ctr := dailyCTR(search)
	position := dailyPosition(search)
	sessions := dailyTotals(analytics, func(r metrics.AnalyticsDaily) (time.Time, float64) { return r.Date, r.Sessions })
	users := dailyTotals(analytics, func(r metrics.AnalyticsDaily) (time.Time, float64) { return r.Date, r.Users })

	agg.Deltas.Search.Clicks = agg.metricDelta(model.MetricClicks, clicks, w, cfg)
	agg.Deltas.Search.Impressions = agg.metricDelta(model.MetricImpressions, impressions, w, cfg)
	agg.Deltas.Search.CTR = agg.metricDelta(model.MetricCTR, ctr, w, cfg)
	agg.Deltas.Search.Position = agg.metricDelta(model.MetricPosition, position, w, cfg)
	agg.Deltas.Analytics.Sessions = agg.metricDelta(model.MetricSessions, sessions, w, cfg)
	agg.Deltas.Analytics.Users = agg.metricDelta(model.MetricUsers, users, w, cfg)

	agg.groupClusters(search, w, rules)

	return agg
}

// metricDelta turns a per-day value map into a MetricDelta and records the
// window series for later z-score use.
func (a *Aggregates) metricDelta(name string, daily map[time.Time]float64, w Windows, cfg config.DiagnosisConfig) model.MetricDelta {
	baseline := valuesIn(daily, w.BaselineFrom, w.BaselineTo)
	current := valuesIn(daily, w.CurrentFrom, w.CurrentTo)
	a.Series[name] = MetricSeries{Baseline: baseline, Current: current}

	d := model.MetricDelta{Metric: name, BaselineDays: len(baseline)}

	baseSum, baseMean := sumMean(baseline)
	curSum, curMean := sumMean(current)

	// A missing or all-zero baseline cannot produce a meaningful percentage;
	// mark the delta unavailable instead of reporting a fake 100% drop.
	if len(baseline) == 0 || baseMean == 0 {
		d.State = model.DeltaUnavailable
		return d
	}

	d.State = model.DeltaComputed
	d.BaselineSum = baseSum
	d.BaselineMean = baseMean
	d.CurrentSum = curSum
	d.CurrentMean = curMean
	d.AbsDelta = curMean - baseMean
	d.PctDelta = (curMean - baseMean) / baseMean * 100
	d.Drop = dropped(name, d.PctDelta, cfg.DropPct)
	return d
}

// dropped applies the drop threshold. Position is inverted: a rise in the
// position number is the regression.
func dropped(metric string, pctDelta, dropPct float64) bool {
	if metric == model.MetricPosition {
		return pctDelta >= -dropPct
	}
	return pctDelta <= dropPct
}

// groupClusters accumulates baseline/current clicks per page cluster.
func (a *Aggregates) groupClusters(search []metrics.SearchDaily, w Windows, rules cluster.RuleSet) {
	type pageSet map[string]struct{}
	pages := make(map[string]pageSet)

	for _, r := range search {
		name := rules.Classify(r.Page)
		c := a.ClusterCounts[name]
		switch {
		case within(r.Date, w.BaselineFrom, w.BaselineTo):
			c.Baseline += r.Clicks
		case within(r.Date, w.CurrentFrom, w.CurrentTo):
			c.Current += r.Clicks
		default:
			continue
		}
		a.ClusterCounts[name] = c

		if pages[name] == nil {
			pages[name] = make(pageSet)
		}
		pages[name][r.Page] = struct{}{}
	}

	for name, set := range pages {
		c := a.ClusterCounts[name]
		c.Pages = len(set)
		a.ClusterCounts[name] = c
	}
}

// NormalizedClusterCounts scales baseline cluster clicks to a per-window-day
// rate comparable with the current window. Baseline windows are longer than
// current windows, so raw sums are not directly comparable.
func (a *Aggregates) NormalizedClusterCounts(cfg config.DiagnosisConfig) map[string]cluster.Counts {
	scale := float64(cfg.CurrentWindowDays) / float64(cfg.BaselineWindowDays)
	out := make(map[string]cluster.Counts, len(a.ClusterCounts))
	for name, c := range a.ClusterCounts {
		out[name] = cluster.Counts{
			Baseline: c.Baseline * scale,
			Current:  c.Current,
			Pages:    c.Pages,
		}
	}
	return out
}

// helpers

func dailyTotals[T any](rows []T, f func(T) (time.Time, float64)) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	for _, r := range rows {
		d, v := f(r)
		out[d.Truncate(24*time.Hour)] += v
	}
	return out
}

// dailyCTR computes clicks/impressions per day rather than averaging row-level
// CTRs, which would overweight low-impression rows.
func dailyCTR(rows []metrics.SearchDaily) map[time.Time]float64 {
	clicks := make(map[time.Time]float64)
	impressions := make(map[time.Time]float64)
	for _, r := range rows {
		d := r.Date.Truncate(24 * time.Hour)
		clicks[d] += r.Clicks
		impressions[d] += r.Impressions
	}
	out := make(map[time.Time]float64, len(impressions))
	for d, imp := range impressions {
		if imp > 0 {
			out[d] = clicks[d] / imp
		}
	}
	return out
}

// dailyPosition computes the impressions-weighted average position per day.
func dailyPosition(rows []metrics.SearchDaily) map[time.Time]float64 {
	weighted := make(map[time.Time]float64)
	impressions := make(map[time.Time]float64)
	for _, r := range rows {
		d := r.Date.Truncate(24 * time.Hour)
		weighted[d] += r.Position * r.Impressions
		impressions[d] += r.Impressions
	}
	out := make(map[time.Time]float64, len(impressions))
	for d, imp := range impressions {
		if imp > 0 {
			out[d] = weighted[d] / imp
		}
	}
	return out
}

func valuesIn(daily map[time.Time]float64, from, to time.Time) []float64 {
	var dates []time.Time
	for d := range daily {
		if within(d, from, to) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]float64, 0, len(dates))
	for _, d := range dates {
		out = append(out, daily[d])
	}
	return out
}

func within(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

func sumMean(values []float64) (sum, mean float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	if math.IsNaN(mean) {
		return 0, 0
	}
	return sum, mean
}
