// Package schedule runs diagnosis on a Temporal task queue so sites can be
// checked on a recurring schedule without a human at the CLI.
package schedule

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/diagnose"
	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/notify"
)

// DiagnosisRequest is the workflow input for one scheduled check.
type DiagnosisRequest struct {
	SiteID string    `json:"site_id"`
	AsOf   time.Time `json:"as_of,omitempty"`
}

// DiagnosisSummary is the workflow result. The full findings live in the
// store; the workflow returns just enough to populate schedule history.
type DiagnosisSummary struct {
	RunID          string               `json:"run_id"`
	Status         model.RunStatus      `json:"status"`
	Classification model.Classification `json:"classification"`
	Confidence     model.Confidence     `json:"confidence"`
	AnomalyCount   int                  `json:"anomaly_count"`
	TicketCount    int                  `json:"ticket_count"`
	Summary        string               `json:"summary"`
}

// DiagnosisWorkflow runs one scheduled diagnosis for a site.
func DiagnosisWorkflow(ctx workflow.Context, req DiagnosisRequest) (*DiagnosisSummary, error) {
	if req.AsOf.IsZero() {
		req.AsOf = workflow.Now(ctx)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	var acts *Activities
	var summary DiagnosisSummary
	if err := workflow.ExecuteActivity(ctx, acts.RunDiagnosis, req).Get(ctx, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Activities holds the dependencies scheduled runs execute against.
type Activities struct {
	Pipeline *diagnose.Pipeline
	Notifier notify.Notifier
}

// RunDiagnosis executes the diagnosis pipeline for one site and posts the
// summary to the webhook when one is configured. Notification failures are
// logged, not retried; the run itself already succeeded.
func (a *Activities) RunDiagnosis(ctx context.Context, req DiagnosisRequest) (*DiagnosisSummary, error) {
	result, err := a.Pipeline.Run(ctx, req.SiteID, model.RunTypeScheduled, req.AsOf)
	if err != nil {
		return nil, err
	}

	if a.Notifier != nil {
		if err := a.Notifier.NotifyRun(ctx, result); err != nil {
			zap.L().Warn("scheduled run notification failed",
				zap.String("run_id", result.Run.ID),
				zap.Error(err),
			)
		}
	}

	return &DiagnosisSummary{
		RunID:          result.Run.ID,
		Status:         result.Run.Status,
		Classification: result.Run.Classification,
		Confidence:     result.Run.Confidence,
		AnomalyCount:   len(result.Anomalies),
		TicketCount:    len(result.Tickets),
		Summary:        result.Run.Summary,
	}, nil
}
