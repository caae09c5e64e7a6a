package model

import "time"

// AnomalyType categorizes a detected significant change.
type AnomalyType string

const (
	AnomalyTrafficDrop     AnomalyType = "traffic_drop"
	AnomalyImpressionsDrop AnomalyType = "impressions_drop"
	AnomalyCTRDrop         AnomalyType = "ctr_drop"
	AnomalyPageClusterDrop AnomalyType = "page_cluster_drop"
	AnomalyTrackingGap     AnomalyType = "tracking_gap"
)

// Anomaly is one statistically or practically significant drop detected for
// a metric/scope pair. Append-only; belongs to exactly one run.
type Anomaly struct {
	ID        string            `json:"id"`
	RunID     string            `json:"run_id"`
	Type      AnomalyType       `json:"type"`
	Metric    string            `json:"metric"`
	StartDate time.Time         `json:"start_date"`
	EndDate   time.Time         `json:"end_date"`
	Baseline  float64           `json:"baseline"`
	Observed  float64           `json:"observed"`
	DeltaPct  float64           `json:"delta_pct"`
	ZScore    *float64          `json:"z_score,omitempty"`
	Scope     map[string]string `json:"scope,omitempty"`
}

// TopScope reports whether the anomaly was detected at the overall (non
// cluster) scope.
func (a Anomaly) TopScope() bool {
	_, clustered := a.Scope["cluster"]
	return !clustered
}
