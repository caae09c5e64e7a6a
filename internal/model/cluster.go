package model

// ClusterLoss records the click loss attributable to one page cluster over a
// run's comparison windows. Rows exist only for clusters with positive loss;
// loss shares across a run sum to at most 1.0.
type ClusterLoss struct {
	RunID          string  `json:"run_id"`
	Cluster        string  `json:"cluster"`
	BaselineClicks float64 `json:"baseline_clicks"`
	CurrentClicks  float64 `json:"current_clicks"`
	Loss           float64 `json:"loss"`
	LossShare      float64 `json:"loss_share"`
	Dominant       bool    `json:"dominant"`
	Pages          int     `json:"pages"`
}
