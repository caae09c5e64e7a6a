// Package detect applies threshold and z-score rules to window deltas and
// decides which drops are significant.
package detect

import (
	"sort"

	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/window"
)

// anomalyType maps a metric name to its anomaly category.
func anomalyType(metric string) model.AnomalyType {
	switch metric {
	case model.MetricImpressions, model.MetricPosition:
		return model.AnomalyImpressionsDrop
	case model.MetricCTR:
		return model.AnomalyCTRDrop
	default:
		return model.AnomalyTrafficDrop
	}
}

// Detect evaluates every metric at the overall scope and every cluster at the
// cluster scope. Significance is the OR of the percentage rule and the
// z-score rule; the z-score rule only applies with enough baseline days.
// Metrics with unavailable deltas are skipped entirely: insufficient data is
// not "no drop", and it is not an anomaly either.
func Detect(runID string, agg *window.Aggregates, cfg config.DiagnosisConfig) []model.Anomaly {
	var anomalies []model.Anomaly

	searchAvailable := agg.Deltas.Search.Clicks.Available()
	searchFlat := searchAvailable && !agg.Deltas.Search.Clicks.Drop

	for _, d := range agg.Deltas.All() {
		if !d.Available() {
			continue
		}

		z, zOK := zFor(d, agg, cfg)
		significant := d.Drop || (zOK && z <= cfg.ZScore)
		if !significant {
			continue
		}

		a := model.Anomaly{
			RunID:     runID,
			Type:      anomalyType(d.Metric),
			Metric:    d.Metric,
			StartDate: agg.Windows.CurrentFrom,
			EndDate:   agg.Windows.CurrentTo,
			Baseline:  d.BaselineMean,
			Observed:  d.CurrentMean,
			DeltaPct:  d.PctDelta,
		}
		if zOK {
			zv := z
			a.ZScore = &zv
		}

		if isAnalytics(d.Metric) {
			a.Scope = map[string]string{"channel": "analytics"}
			// Analytics collapsing while search visibility holds steady points
			// at instrumentation, not traffic.
			if searchFlat {
				a.Type = model.AnomalyTrackingGap
			}
		}

		anomalies = append(anomalies, a)
	}

	anomalies = append(anomalies, detectClusters(runID, agg, cfg)...)

	zap.L().Debug("detect: evaluation complete",
		zap.String("run_id", runID),
		zap.Int("anomalies", len(anomalies)),
	)
	return anomalies
}

// zFor computes the z-score of the current-window mean against the baseline
// distribution, honoring the minimum baseline sample size.
func zFor(d model.MetricDelta, agg *window.Aggregates, cfg config.DiagnosisConfig) (float64, bool) {
	if d.BaselineDays < cfg.MinBaselineDays {
		return 0, false
	}
	series, ok := agg.Series[d.Metric]
	if !ok {
		return 0, false
	}
	z, ok := ZScore(series.Baseline, d.CurrentMean)
	if !ok {
		return 0, false
	}
	// Position is inverted; flip the sign so a rising position number reads
	// as a negative score like every other regression.
	if d.Metric == model.MetricPosition {
		z = -z
	}
	return z, true
}

// detectClusters applies the percentage rule to per-cluster click counts.
// Cluster scopes have no per-day series, so only rule (a) applies.
func detectClusters(runID string, agg *window.Aggregates, cfg config.DiagnosisConfig) []model.Anomaly {
	var anomalies []model.Anomaly
	for name, c := range agg.NormalizedClusterCounts(cfg) {
		if c.Baseline == 0 {
			continue
		}
		pct := (c.Current - c.Baseline) / c.Baseline * 100
		if pct > cfg.DropPct {
			continue
		}
		anomalies = append(anomalies, model.Anomaly{
			RunID:     runID,
			Type:      model.AnomalyPageClusterDrop,
			Metric:    model.MetricClicks,
			StartDate: agg.Windows.CurrentFrom,
			EndDate:   agg.Windows.CurrentTo,
			Baseline:  c.Baseline,
			Observed:  c.Current,
			DeltaPct:  pct,
			Scope:     map[string]string{"cluster": name},
		})
	}
	// Map iteration order is random; keep output deterministic.
	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].Scope["cluster"] < anomalies[j].Scope["cluster"]
	})
	return anomalies
}

func isAnalytics(metric string) bool {
	return metric == model.MetricSessions || metric == model.MetricUsers
}

// HasTopScopeDrop reports whether at least one anomaly exists at the overall
// (non-cluster) scope, the run-level "is there a drop" signal.
func HasTopScopeDrop(anomalies []model.Anomaly) bool {
	for _, a := range anomalies {
		if a.TopScope() {
			return true
		}
	}
	return false
}
