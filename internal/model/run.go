package model

import "time"

// RunStatus represents the lifecycle state of a diagnostic run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final. Terminal runs are immutable;
// a retry allocates a new run id.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunType describes how a run was initiated and how much of the pipeline it
// executes.
type RunType string

const (
	RunTypeFull      RunType = "full"
	RunTypeSmoke     RunType = "smoke"
	RunTypeScheduled RunType = "scheduled"
)

// SourceStatus records the fetch outcome for one upstream metric family.
type SourceStatus struct {
	Source    string `json:"source"`
	Available bool   `json:"available"`
	Rows      int    `json:"rows"`
	Error     string `json:"error,omitempty"`
}

// Run is one execution of the diagnosis pipeline for a site.
type Run struct {
	ID             string         `json:"id"`
	SiteID         string         `json:"site_id"`
	Type           RunType        `json:"type"`
	Status         RunStatus      `json:"status"`
	AsOf           time.Time      `json:"as_of"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Confidence     Confidence     `json:"confidence,omitempty"`
	AnomalyCount   int            `json:"anomaly_count"`
	TicketCount    int            `json:"ticket_count"`
	Sources        []SourceStatus `json:"sources,omitempty"`
	Deltas         *Deltas        `json:"deltas,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
}

// DiagnosisResult bundles everything one run produced, as returned to callers
// of the pipeline. The persisted rows are the source of truth; this is the
// in-memory view.
type DiagnosisResult struct {
	Run           Run           `json:"run"`
	Anomalies     []Anomaly     `json:"anomalies"`
	ClusterLosses []ClusterLoss `json:"cluster_losses"`
	Hypotheses    []Hypothesis  `json:"hypotheses"`
	Tickets       []Ticket      `json:"tickets"`
	Report        string        `json:"report,omitempty"`
}
