package model

// Classification is the single top-level label assigned to a run.
type Classification string

const (
	ClassVisibilityLoss        Classification = "VISIBILITY_LOSS"
	ClassCTRLoss               Classification = "CTR_LOSS"
	ClassPageClusterRegression Classification = "PAGE_CLUSTER_REGRESSION"
	ClassTrackingGap           Classification = "TRACKING_OR_ATTRIBUTION_GAP"
	ClassInconclusive          Classification = "INCONCLUSIVE"
)
