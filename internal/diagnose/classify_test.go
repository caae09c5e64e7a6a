package diagnose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

func anomaly(typ model.AnomalyType, metric string) model.Anomaly {
	return model.Anomaly{RunID: "run-1", Type: typ, Metric: metric}
}

func clusterAnomaly(cluster string) model.Anomaly {
	return model.Anomaly{
		RunID:  "run-1",
		Type:   model.AnomalyPageClusterDrop,
		Metric: model.MetricClicks,
		Scope:  map[string]string{"cluster": cluster},
	}
}

func deltasWith(impressions, clicks model.MetricDelta) *model.Deltas {
	d := &model.Deltas{}
	d.Search.Impressions = impressions
	d.Search.Clicks = clicks
	return d
}

func stable(metric string) model.MetricDelta {
	return model.MetricDelta{Metric: metric, State: model.DeltaComputed, PctDelta: -2, Drop: false}
}

func dropping(metric string) model.MetricDelta {
	return model.MetricDelta{Metric: metric, State: model.DeltaComputed, PctDelta: -45, Drop: true}
}

func unavailable(metric string) model.MetricDelta {
	return model.MetricDelta{Metric: metric, State: model.DeltaUnavailable}
}

func TestClassifyInconclusive(t *testing.T) {
	got := Classify(nil, nil, deltasWith(stable(model.MetricImpressions), stable(model.MetricClicks)))
	assert.Equal(t, model.ClassInconclusive, got)
}

func TestClassifyTrackingGapWinsOverEverything(t *testing.T) {
	anomalies := []model.Anomaly{
		anomaly(model.AnomalyTrackingGap, model.MetricSessions),
		anomaly(model.AnomalyImpressionsDrop, model.MetricImpressions),
		clusterAnomaly("/services/*"),
	}
	losses := []model.ClusterLoss{{Cluster: "/services/*", Dominant: true}}

	got := Classify(anomalies, losses, deltasWith(dropping(model.MetricImpressions), dropping(model.MetricClicks)))
	assert.Equal(t, model.ClassTrackingGap, got)
}

func TestClassifyDominantClusterLoss(t *testing.T) {
	anomalies := []model.Anomaly{
		anomaly(model.AnomalyTrafficDrop, model.MetricClicks),
		clusterAnomaly("/services/*"),
	}
	losses := []model.ClusterLoss{
		{Cluster: "/services/*", LossShare: 0.8, Dominant: true},
		{Cluster: "/blog/*", LossShare: 0.2},
	}

	got := Classify(anomalies, losses, deltasWith(dropping(model.MetricImpressions), dropping(model.MetricClicks)))
	assert.Equal(t, model.ClassPageClusterRegression, got)
}

func TestClassifyCTRLoss(t *testing.T) {
	// CTR fell while impressions held and position did not slip: the pages
	// still rank, searchers stopped clicking.
	anomalies := []model.Anomaly{
		anomaly(model.AnomalyCTRDrop, model.MetricCTR),
		anomaly(model.AnomalyTrafficDrop, model.MetricClicks),
	}

	got := Classify(anomalies, nil, deltasWith(stable(model.MetricImpressions), dropping(model.MetricClicks)))
	assert.Equal(t, model.ClassCTRLoss, got)
}

func TestClassifyCTRWithPositionDropIsVisibility(t *testing.T) {
	anomalies := []model.Anomaly{
		anomaly(model.AnomalyCTRDrop, model.MetricCTR),
		anomaly(model.AnomalyTrafficDrop, model.MetricPosition),
	}

	got := Classify(anomalies, nil, deltasWith(stable(model.MetricImpressions), dropping(model.MetricClicks)))
	assert.Equal(t, model.ClassVisibilityLoss, got)
}

func TestClassifyVisibilityLoss(t *testing.T) {
	anomalies := []model.Anomaly{
		anomaly(model.AnomalyImpressionsDrop, model.MetricImpressions),
		anomaly(model.AnomalyTrafficDrop, model.MetricClicks),
	}

	got := Classify(anomalies, nil, deltasWith(dropping(model.MetricImpressions), dropping(model.MetricClicks)))
	assert.Equal(t, model.ClassVisibilityLoss, got)
}

func TestClassifyClicksOnlyIsCTRLoss(t *testing.T) {
	anomalies := []model.Anomaly{anomaly(model.AnomalyTrafficDrop, model.MetricClicks)}

	got := Classify(anomalies, nil, deltasWith(stable(model.MetricImpressions), dropping(model.MetricClicks)))
	assert.Equal(t, model.ClassCTRLoss, got)
}

func TestClassifyAnalyticsOnlyWithoutSearchData(t *testing.T) {
	// Sessions fell but the search side has no baseline at all: we cannot
	// demonstrate a visibility loss, so route it as an attribution gap.
	anomalies := []model.Anomaly{anomaly(model.AnomalyTrafficDrop, model.MetricSessions)}

	got := Classify(anomalies, nil, deltasWith(unavailable(model.MetricImpressions), unavailable(model.MetricClicks)))
	assert.Equal(t, model.ClassTrackingGap, got)
}

func TestClassifyClusterOnlyAnomalies(t *testing.T) {
	anomalies := []model.Anomaly{clusterAnomaly("/blog/*")}
	losses := []model.ClusterLoss{{Cluster: "/blog/*", LossShare: 0.4}}

	got := Classify(anomalies, losses, deltasWith(stable(model.MetricImpressions), stable(model.MetricClicks)))
	assert.Equal(t, model.ClassVisibilityLoss, got)
}

func TestOverallConfidence(t *testing.T) {
	assert.Equal(t, model.ConfidenceLow, OverallConfidence(nil))
	assert.Equal(t, model.ConfidenceHigh, OverallConfidence([]model.Hypothesis{
		{Rank: 1, Confidence: model.ConfidenceHigh},
		{Rank: 2, Confidence: model.ConfidenceLow},
	}))
}
