package model

// Canonical metric names used across deltas, anomalies and evidence.
const (
	MetricClicks      = "clicks"
	MetricImpressions = "impressions"
	MetricCTR         = "ctr"
	MetricPosition    = "position"
	MetricSessions    = "sessions"
	MetricUsers       = "users"
)

// DeltaState distinguishes a computed delta from one that could not be
// computed. A missing baseline must never masquerade as a 100% drop, so
// "unavailable" is a first-class state rather than a zero value.
type DeltaState string

const (
	DeltaComputed    DeltaState = "computed"
	DeltaUnavailable DeltaState = "unavailable"
)

// MetricDelta holds current-vs-baseline aggregates for one metric.
type MetricDelta struct {
	Metric       string     `json:"metric"`
	State        DeltaState `json:"state"`
	BaselineSum  float64    `json:"baseline_sum"`
	BaselineMean float64    `json:"baseline_mean"`
	CurrentSum   float64    `json:"current_sum"`
	CurrentMean  float64    `json:"current_mean"`
	AbsDelta     float64    `json:"abs_delta"`
	PctDelta     float64    `json:"pct_delta"`
	Drop         bool       `json:"drop"`
	// BaselineDays is the number of days with data in the baseline window,
	// used by the detector to gate the z-score rule.
	BaselineDays int `json:"baseline_days"`
}

// Available reports whether the delta was actually computed.
func (d MetricDelta) Available() bool {
	return d.State == DeltaComputed
}

// SearchDeltas holds the search-visibility metric family.
type SearchDeltas struct {
	Clicks      MetricDelta `json:"clicks"`
	Impressions MetricDelta `json:"impressions"`
	CTR         MetricDelta `json:"ctr"`
	Position    MetricDelta `json:"position"`
}

// AnalyticsDeltas holds the analytics metric family.
type AnalyticsDeltas struct {
	Sessions MetricDelta `json:"sessions"`
	Users    MetricDelta `json:"users"`
}

// Deltas is the per-run snapshot of current-vs-baseline deltas for both
// metric families. Computed once per run, owned by that run.
type Deltas struct {
	Search    SearchDeltas    `json:"search"`
	Analytics AnalyticsDeltas `json:"analytics"`
}

// All returns every metric delta in a fixed order.
func (d *Deltas) All() []MetricDelta {
	return []MetricDelta{
		d.Search.Clicks, d.Search.Impressions, d.Search.CTR, d.Search.Position,
		d.Analytics.Sessions, d.Analytics.Users,
	}
}
