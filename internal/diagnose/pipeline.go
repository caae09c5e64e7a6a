// Package diagnose orchestrates a diagnostic run end to end: fetch, window
// aggregation, anomaly detection, cluster loss analysis, hypothesis
// generation, classification and ticket synthesis.
package diagnose

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rankpulse/diagnose-cli/internal/cluster"
	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/detect"
	"github.com/rankpulse/diagnose-cli/internal/hypothesis"
	"github.com/rankpulse/diagnose-cli/internal/metrics"
	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/store"
	"github.com/rankpulse/diagnose-cli/internal/ticket"
	"github.com/rankpulse/diagnose-cli/internal/window"
)

// Pipeline runs the diagnosis stages for one site.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	source metrics.Source
	rules  cluster.RuleSet
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, src metrics.Source, rules cluster.RuleSet) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, source: src, rules: rules}
}

// Run executes a diagnostic run. Fetch failures for individual metric
// families degrade the run rather than failing it; the run fails only when no
// family produced data or persistence breaks. Smoke runs stop short of ticket
// synthesis.
func (p *Pipeline) Run(ctx context.Context, siteID string, typ model.RunType, asOf time.Time) (*model.DiagnosisResult, error) {
	log := zap.L().With(zap.String("site_id", siteID), zap.String("type", string(typ)))
	log.Info("diagnose: starting run", zap.Time("as_of", asOf))

	run, err := p.store.CreateRun(ctx, siteID, typ, asOf)
	if err != nil {
		return nil, eris.Wrap(err, "diagnose: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	result := &model.DiagnosisResult{}

	fail := func(failErr error) (*model.DiagnosisResult, error) {
		run.Status = model.RunStatusFailed
		run.Errors = append(run.Errors, failErr.Error())
		if cErr := p.store.CompleteRun(ctx, run); cErr != nil {
			log.Warn("diagnose: failed to persist failed run", zap.Error(cErr))
		}
		result.Run = *run
		return result, failErr
	}

	// Stage timing helper. Stage errors surface to the caller; the stages
	// themselves decide what is fatal.
	trackStage := func(name string, fn func() error) error {
		start := time.Now()
		stageErr := fn()
		dur := time.Since(start).Milliseconds()
		if stageErr != nil {
			log.Error("diagnose: stage failed", zap.String("stage", name), zap.Int64("duration_ms", dur), zap.Error(stageErr))
			return stageErr
		}
		log.Info("diagnose: stage complete", zap.String("stage", name), zap.Int64("duration_ms", dur))
		return nil
	}

	// ===== Stage 1: fetch metric families in parallel =====
	w := window.For(asOf, p.cfg.Diagnosis)
	fetchTimeout := time.Duration(p.cfg.Diagnosis.FetchTimeoutSecs) * time.Second

	var (
		searchRows    []metrics.SearchDaily
		analyticsRows []metrics.AnalyticsDaily
		checks        []metrics.PageCheck
		sourcesMu     sync.Mutex
	)

	recordSource := func(name string, rows int, fetchErr error) {
		st := model.SourceStatus{Source: name, Available: fetchErr == nil, Rows: rows}
		if fetchErr != nil {
			st.Error = fetchErr.Error()
			log.Warn("diagnose: source unavailable", zap.String("source", name), zap.Error(fetchErr))
		}
		sourcesMu.Lock()
		run.Sources = append(run.Sources, st)
		sourcesMu.Unlock()
	}

	_ = trackStage("1_fetch", func() error {
		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gCtx, fetchTimeout)
			defer cancel()
			rows, fetchErr := p.source.SearchDaily(fctx, siteID, w.BaselineFrom, w.CurrentTo)
			if fetchErr == nil {
				searchRows = rows
			}
			recordSource("search", len(rows), fetchErr)
			return nil
		})
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gCtx, fetchTimeout)
			defer cancel()
			rows, fetchErr := p.source.AnalyticsDaily(fctx, siteID, w.BaselineFrom, w.CurrentTo)
			if fetchErr == nil {
				analyticsRows = rows
			}
			recordSource("analytics", len(rows), fetchErr)
			return nil
		})
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gCtx, fetchTimeout)
			defer cancel()
			rows, fetchErr := p.source.PageChecks(fctx, siteID, w.BaselineFrom, w.CurrentTo)
			if fetchErr == nil {
				checks = rows
			}
			recordSource("page_checks", len(rows), fetchErr)
			return nil
		})

		// Fetch failures are recorded per source, never returned.
		return g.Wait()
	})

	if len(searchRows) == 0 && len(analyticsRows) == 0 {
		return fail(eris.New("diagnose: no metric data available for any source"))
	}
	if len(checks) == 0 {
		run.Errors = append(run.Errors, "no page check data in window; technical hypotheses limited to metric evidence")
	}

	// ===== Stage 2: windows and deltas =====
	var agg *window.Aggregates
	_ = trackStage("2_deltas", func() error {
		agg = window.Compute(searchRows, analyticsRows, asOf, p.cfg.Diagnosis, p.rules)
		run.Deltas = &agg.Deltas
		return nil
	})

	// ===== Stage 3: anomaly detection =====
	var anomalies []model.Anomaly
	if err := trackStage("3_detect", func() error {
		anomalies = detect.Detect(run.ID, agg, p.cfg.Diagnosis)
		return eris.Wrap(p.store.InsertAnomalies(ctx, run.ID, anomalies), "diagnose: persist anomalies")
	}); err != nil {
		return fail(err)
	}
	run.AnomalyCount = len(anomalies)
	result.Anomalies = anomalies

	// ===== Stage 4: cluster loss analysis =====
	var losses []model.ClusterLoss
	if err := trackStage("4_cluster_loss", func() error {
		losses = cluster.AnalyzeLoss(run.ID, agg.NormalizedClusterCounts(p.cfg.Diagnosis), p.cfg.Diagnosis.ClusterLossShare)
		return eris.Wrap(p.store.InsertClusterLosses(ctx, run.ID, losses), "diagnose: persist cluster losses")
	}); err != nil {
		return fail(err)
	}
	result.ClusterLosses = losses

	// ===== Stage 5: hypothesis generation =====
	var hyps []model.Hypothesis
	if err := trackStage("5_hypotheses", func() error {
		hyps = hypothesis.Generate(run.ID, hypothesis.Input{
			Deltas:        agg.Deltas,
			Anomalies:     anomalies,
			ClusterLosses: losses,
			Checks:        checks,
			Rules:         p.rules,
			Cfg:           p.cfg.Diagnosis,
		})
		return eris.Wrap(p.store.InsertHypotheses(ctx, run.ID, hyps), "diagnose: persist hypotheses")
	}); err != nil {
		return fail(err)
	}
	result.Hypotheses = hyps

	// ===== Stage 6: classification =====
	_ = trackStage("6_classify", func() error {
		run.Classification = Classify(anomalies, losses, &agg.Deltas)
		run.Confidence = OverallConfidence(hyps)
		return nil
	})

	// ===== Stage 7: ticket synthesis =====
	if typ == model.RunTypeSmoke {
		log.Info("diagnose: smoke run, skipping ticket synthesis")
	} else if err := trackStage("7_tickets", func() error {
		synth := ticket.NewSynthesizer(p.store, p.cfg.Diagnosis)
		created, synthErr := synth.Synthesize(ctx, run.ID, hyps, losses)
		if synthErr != nil {
			return synthErr
		}
		result.Tickets = created
		return nil
	}); err != nil {
		return fail(err)
	}
	run.TicketCount = len(result.Tickets)

	// ===== Stage 8: report and completion =====
	run.Status = model.RunStatusCompleted
	run.Summary = Summarize(run.Classification, run.Confidence, hyps, anomalies)
	result.Run = *run
	result.Report = FormatReport(result, agg)

	if err := p.store.CompleteRun(ctx, run); err != nil {
		return fail(eris.Wrap(err, "diagnose: complete run"))
	}
	result.Run = *run

	log.Info("diagnose: run complete",
		zap.String("classification", string(run.Classification)),
		zap.String("confidence", string(run.Confidence)),
		zap.Int("anomalies", run.AnomalyCount),
		zap.Int("tickets", run.TicketCount),
	)
	return result, nil
}
