package model

import "time"

// Owner identifies which team a ticket is routed to.
type Owner string

const (
	OwnerSEO Owner = "SEO"
	OwnerDEV Owner = "DEV"
	OwnerADS Owner = "ADS"
)

// Priority is the urgency tier assigned to a hypothesis and its tickets.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Tier returns the numeric tier (0 for P0) for ordering; unknown priorities
// sort last.
func (p Priority) Tier() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 4
	}
}

// TicketStatus tracks the external workflow state of a ticket. Status is the
// only field mutated after creation.
type TicketStatus string

const (
	TicketOpen      TicketStatus = "open"
	TicketDismissed TicketStatus = "dismissed"
	TicketDone      TicketStatus = "done"
)

// ImpactEstimate quantifies what fixing a ticket is expected to recover.
type ImpactEstimate struct {
	AffectedPages     int     `json:"affected_pages"`
	RecoverableClicks float64 `json:"recoverable_clicks"`
}

// Ticket is an actionable, owner-routed remediation item derived from one
// ranked hypothesis. At most one ticket exists per (run id, hypothesis key).
type Ticket struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	HypothesisKey  HypothesisKey  `json:"hypothesis_key"`
	Title          string         `json:"title"`
	Owner          Owner          `json:"owner"`
	Priority       Priority       `json:"priority"`
	Status         TicketStatus   `json:"status"`
	Steps          []string       `json:"steps"`
	ExpectedImpact Confidence     `json:"expected_impact"`
	Impact         ImpactEstimate `json:"impact"`
	EvidenceRefs   []string       `json:"evidence_refs,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
