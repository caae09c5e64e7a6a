package model

// HypothesisKey identifies one of the canonical candidate root causes.
type HypothesisKey string

const (
	HypRobotsOrNoindex   HypothesisKey = "ROBOTS_OR_NOINDEX"
	HypCanonicalMismatch HypothesisKey = "CANONICAL_MISMATCH"
	HypRedirectOrHTTP    HypothesisKey = "REDIRECT_OR_HTTP_CHANGE"
	HypThinContentOrSSR  HypothesisKey = "THIN_CONTENT_OR_SSR"
	HypStructuredData    HypothesisKey = "STRUCTURED_DATA_BREAKAGE"
	HypInternalLinking   HypothesisKey = "INTERNAL_LINKING_BREAKAGE"
	HypContentIntent     HypothesisKey = "CONTENT_INTENT_MISMATCH"
	HypSERPLayoutCTR     HypothesisKey = "SERP_LAYOUT_CTR_SHIFT"
	HypAlgorithmUpdate   HypothesisKey = "ALGORITHM_UPDATE"
	HypSeasonality       HypothesisKey = "SEASONALITY"
	HypTrackingBroken    HypothesisKey = "TRACKING_MISCONFIGURATION"
)

// Confidence buckets hypothesis strength.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AtLeast reports whether c is at least as strong as min.
func (c Confidence) AtLeast(min Confidence) bool {
	return confidenceOrder(c) >= confidenceOrder(min)
}

func confidenceOrder(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// EvidenceType categorizes where an evidence block came from.
type EvidenceType string

const (
	EvidenceMetric     EvidenceType = "metric"
	EvidenceCheck      EvidenceType = "check"
	EvidenceComparison EvidenceType = "comparison"
	EvidenceLog        EvidenceType = "log"
)

// Strength grades how much weight an evidence block carries.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// EvidenceBlock is one discrete observation supporting or weakening a
// hypothesis. Immutable once attached.
type EvidenceBlock struct {
	Type      EvidenceType   `json:"type"`
	Statement string         `json:"statement"`
	Data      map[string]any `json:"data,omitempty"`
	Strength  Strength       `json:"strength"`
}

// Hypothesis is a ranked candidate root cause for a run's anomalies. Created
// once per run; a re-run creates new rows rather than editing old ones.
type Hypothesis struct {
	RunID         string          `json:"run_id"`
	Rank          int             `json:"rank"`
	Key           HypothesisKey   `json:"key"`
	Confidence    Confidence      `json:"confidence"`
	Summary       string          `json:"summary"`
	Evidence      []EvidenceBlock `json:"evidence"`
	Disconfirming []EvidenceBlock `json:"disconfirming,omitempty"`
	MissingData   []string        `json:"missing_data,omitempty"`
}
