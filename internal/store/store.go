// Package store persists runs and their findings. Two backends implement the
// same interface: SQLite for single-machine use and Postgres for shared
// deployments.
package store

import (
	"context"
	"time"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	SiteID string          `json:"site_id,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// TicketFilter specifies criteria for listing tickets.
type TicketFilter struct {
	RunID  string             `json:"run_id,omitempty"`
	Status model.TicketStatus `json:"status,omitempty"`
	Owner  model.Owner        `json:"owner,omitempty"`
	Limit  int                `json:"limit,omitempty"`
}

// Store defines the persistence interface for the diagnosis pipeline.
// Anomalies, cluster losses and hypotheses are append-only per run; runs in a
// terminal status reject further mutation.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, siteID string, typ model.RunType, asOf time.Time) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Findings
	InsertAnomalies(ctx context.Context, runID string, anomalies []model.Anomaly) error
	ListAnomalies(ctx context.Context, runID string) ([]model.Anomaly, error)
	InsertClusterLosses(ctx context.Context, runID string, losses []model.ClusterLoss) error
	ListClusterLosses(ctx context.Context, runID string) ([]model.ClusterLoss, error)
	InsertHypotheses(ctx context.Context, runID string, hypotheses []model.Hypothesis) error
	ListHypotheses(ctx context.Context, runID string) ([]model.Hypothesis, error)

	// Tickets
	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicketByRunAndKey(ctx context.Context, runID string, key model.HypothesisKey) (*model.Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]model.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus) error
	NextTicketSeq(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
