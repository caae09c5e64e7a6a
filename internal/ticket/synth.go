// Package ticket turns top-ranked hypotheses into actionable, owner-routed
// remediation tickets.
package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/hypothesis"
	"github.com/rankpulse/diagnose-cli/internal/model"
)

// Store is the slice of persistence the synthesizer needs.
type Store interface {
	GetTicketByRunAndKey(ctx context.Context, runID string, key model.HypothesisKey) (*model.Ticket, error)
	CreateTicket(ctx context.Context, t *model.Ticket) error
	NextTicketSeq(ctx context.Context) (int64, error)
}

// Synthesizer builds tickets from ranked hypotheses.
type Synthesizer struct {
	store Store
	cfg   config.DiagnosisConfig
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(store Store, cfg config.DiagnosisConfig) *Synthesizer {
	return &Synthesizer{store: store, cfg: cfg}
}

// confidenceScale discounts recoverable clicks by how sure we are about the
// root cause.
func confidenceScale(c model.Confidence) float64 {
	switch c {
	case model.ConfidenceHigh:
		return 0.9
	case model.ConfidenceMedium:
		return 0.6
	default:
		return 0.3
	}
}

// Synthesize creates one ticket per qualifying hypothesis: the top MaxTickets
// ranked hypotheses with at least medium confidence. Idempotent on
// (run id, hypothesis key): re-running for the same run creates nothing new.
// Returns only the tickets created by this invocation.
func (s *Synthesizer) Synthesize(ctx context.Context, runID string, hypotheses []model.Hypothesis, losses []model.ClusterLoss) ([]model.Ticket, error) {
	var created []model.Ticket

	taken := 0
	for _, h := range hypotheses {
		if taken >= s.cfg.MaxTickets {
			break
		}
		if !h.Confidence.AtLeast(model.ConfidenceMedium) {
			continue
		}
		taken++

		existing, err := s.store.GetTicketByRunAndKey(ctx, runID, h.Key)
		if err != nil {
			return created, eris.Wrapf(err, "ticket: lookup existing for %s", h.Key)
		}
		if existing != nil {
			continue
		}

		t, err := s.build(ctx, runID, h, losses)
		if err != nil {
			return created, err
		}
		if err := s.store.CreateTicket(ctx, t); err != nil {
			return created, eris.Wrapf(err, "ticket: create for %s", h.Key)
		}
		created = append(created, *t)

		zap.L().Info("ticket: synthesized",
			zap.String("run_id", runID),
			zap.String("ticket_id", t.ID),
			zap.String("hypothesis", string(h.Key)),
			zap.String("owner", string(t.Owner)),
			zap.String("priority", string(t.Priority)),
		)
	}

	return created, nil
}

func (s *Synthesizer) build(ctx context.Context, runID string, h model.Hypothesis, losses []model.ClusterLoss) (*model.Ticket, error) {
	entry, err := hypothesis.Entry(h.Key)
	if err != nil {
		return nil, err
	}

	seq, err := s.store.NextTicketSeq(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ticket: allocate id")
	}

	clusterName, affectedPages, lostClicks := impactBasis(losses)
	now := time.Now().UTC()

	t := &model.Ticket{
		ID:             fmt.Sprintf("TICK-%d", seq),
		RunID:          runID,
		HypothesisKey:  h.Key,
		Title:          title(entry, clusterName),
		Owner:          ownerFor(entry, h),
		Priority:       entry.Priority,
		Status:         model.TicketOpen,
		Steps:          steps(entry, h, clusterName, s.cfg.MinTextLength),
		ExpectedImpact: h.Confidence,
		Impact: model.ImpactEstimate{
			AffectedPages:     affectedPages,
			RecoverableClicks: lostClicks * confidenceScale(h.Confidence),
		},
		EvidenceRefs: evidenceRefs(h),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return t, nil
}

// impactBasis derives the affected cluster, page count and lost clicks from
// the run's cluster losses. Losses are sorted largest first.
func impactBasis(losses []model.ClusterLoss) (clusterName string, pages int, lostClicks float64) {
	clusterName = "the affected pages"
	for i, l := range losses {
		if i == 0 {
			clusterName = l.Cluster
			pages = l.Pages
		}
		lostClicks += l.Loss
	}
	return clusterName, pages, lostClicks
}

func title(entry hypothesis.CatalogEntry, clusterName string) string {
	return fmt.Sprintf("%s (%s)", entry.Title, clusterName)
}

// ownerFor applies the catalog routing, with the tracking exception: when the
// analytics tag itself was not the failing signal, the fix lands on DEV
// rather than ADS.
func ownerFor(entry hypothesis.CatalogEntry, h model.Hypothesis) model.Owner {
	if entry.Key != model.HypTrackingBroken {
		return entry.Owner
	}
	for _, e := range h.Evidence {
		if missing, ok := e.Data["missing_tag"].(bool); ok && missing {
			return model.OwnerADS
		}
	}
	return model.OwnerDEV
}

// steps instantiates the entry's step templates with the run's concrete
// values. Each template carries at most one placeholder.
func steps(entry hypothesis.CatalogEntry, h model.Hypothesis, clusterName string, minTextLength int) []string {
	out := make([]string, len(entry.Steps))
	for i, tmpl := range entry.Steps {
		switch {
		case strings.Contains(tmpl, "%d"):
			out[i] = fmt.Sprintf(tmpl, minTextFrom(h, minTextLength))
		case strings.Contains(tmpl, "%s") && entry.Key == model.HypTrackingBroken:
			out[i] = fmt.Sprintf(tmpl, exampleURLFrom(h))
		case strings.Contains(tmpl, "%s"):
			out[i] = fmt.Sprintf(tmpl, clusterName)
		default:
			out[i] = tmpl
		}
	}
	return out
}

func minTextFrom(h model.Hypothesis, fallback int) int {
	for _, e := range h.Evidence {
		if v, ok := e.Data["min_text_length"].(int); ok {
			return v
		}
	}
	return fallback
}

func exampleURLFrom(h model.Hypothesis) string {
	for _, e := range h.Evidence {
		if v, ok := e.Data["example_url"].(string); ok && v != "" {
			return v
		}
	}
	return "the affected landing pages"
}

func evidenceRefs(h model.Hypothesis) []string {
	refs := make([]string, 0, len(h.Evidence))
	for _, e := range h.Evidence {
		refs = append(refs, e.Statement)
	}
	return refs
}
