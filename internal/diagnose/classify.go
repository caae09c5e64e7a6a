package diagnose

import (
	"github.com/rankpulse/diagnose-cli/internal/model"
)

// Classify maps a run's anomalies, cluster losses and deltas to exactly one
// run-level classification. Pure and total.
//
// Precedence: instrumentation disagreement beats everything (a broken tag
// makes traffic numbers unreliable), then a dominant structural loss, then
// the CTR-specific signature, then general visibility loss. A run with no
// significant anomaly is INCONCLUSIVE, including the all-data-missing case,
// which produces no anomalies by construction.
func Classify(anomalies []model.Anomaly, losses []model.ClusterLoss, deltas *model.Deltas) model.Classification {
	if len(anomalies) == 0 {
		return model.ClassInconclusive
	}

	for _, a := range anomalies {
		if a.Type == model.AnomalyTrackingGap {
			return model.ClassTrackingGap
		}
	}

	for _, l := range losses {
		if l.Dominant {
			return model.ClassPageClusterRegression
		}
	}

	var ctrDrop, impressionsDrop, positionDrop, clicksDrop, analyticsDrop bool
	for _, a := range anomalies {
		if !a.TopScope() {
			continue
		}
		switch a.Metric {
		case model.MetricCTR:
			ctrDrop = true
		case model.MetricImpressions:
			impressionsDrop = true
		case model.MetricPosition:
			positionDrop = true
		case model.MetricClicks:
			clicksDrop = true
		case model.MetricSessions, model.MetricUsers:
			analyticsDrop = true
		}
	}

	impressionsStable := deltas != nil &&
		deltas.Search.Impressions.Available() && !deltas.Search.Impressions.Drop

	if ctrDrop && impressionsStable && !positionDrop {
		return model.ClassCTRLoss
	}
	if impressionsDrop || positionDrop {
		return model.ClassVisibilityLoss
	}
	if clicksDrop || ctrDrop {
		// Clicks fell without an impression-side signal: click-through, not
		// visibility.
		return model.ClassCTRLoss
	}

	// Analytics dropped with no search-side corroboration available: an
	// attribution gap, not demonstrated visibility loss.
	if analyticsDrop && (deltas == nil || !deltas.Search.Clicks.Available()) {
		return model.ClassTrackingGap
	}

	// Only cluster-scope anomalies remain.
	return model.ClassVisibilityLoss
}

// OverallConfidence derives the run-level confidence from the top-ranked
// hypothesis, defaulting to low when nothing was emitted.
func OverallConfidence(hypotheses []model.Hypothesis) model.Confidence {
	if len(hypotheses) == 0 {
		return model.ConfidenceLow
	}
	return hypotheses[0].Confidence
}
