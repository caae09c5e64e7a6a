package diagnose

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/window"
)

const dateFormat = "2006-01-02"

// FormatReport renders the run's findings as a human-readable text report.
func FormatReport(result *model.DiagnosisResult, agg *window.Aggregates) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	run := result.Run
	b.WriteString(fmt.Sprintf("Traffic Regression Diagnosis — site %s\n", run.SiteID))
	b.WriteString(fmt.Sprintf("Run %s (%s), as of %s\n", run.ID, run.Type, run.AsOf.Format(dateFormat)))
	b.WriteString(fmt.Sprintf("Classification: %s (confidence: %s)\n\n", run.Classification, run.Confidence))

	if agg != nil {
		w := agg.Windows
		b.WriteString(fmt.Sprintf("Current window:  %s to %s\n", w.CurrentFrom.Format(dateFormat), w.CurrentTo.Format(dateFormat)))
		b.WriteString(fmt.Sprintf("Baseline window: %s to %s\n\n", w.BaselineFrom.Format(dateFormat), w.BaselineTo.Format(dateFormat)))

		b.WriteString("Metric deltas:\n")
		for _, d := range agg.Deltas.All() {
			if !d.Available() {
				b.WriteString(fmt.Sprintf("  %-12s no baseline data\n", d.Metric))
				continue
			}
			marker := ""
			if d.Drop {
				marker = "  << drop"
			}
			b.WriteString(p.Sprintf("  %-12s %.1f -> %.1f (%+.1f%%)%s\n",
				d.Metric, d.BaselineMean, d.CurrentMean, d.PctDelta, marker))
		}
		b.WriteString("\n")
	}

	if len(result.Anomalies) > 0 {
		b.WriteString(p.Sprintf("Anomalies (%d):\n", len(result.Anomalies)))
		for _, a := range result.Anomalies {
			scope := "overall"
			if c, ok := a.Scope["cluster"]; ok {
				scope = c
			}
			line := p.Sprintf("  [%s] %s %s: %.1f -> %.1f (%+.1f%%)",
				a.Type, a.Metric, scope, a.Baseline, a.Observed, a.DeltaPct)
			if a.ZScore != nil {
				line += p.Sprintf(", z=%.2f", *a.ZScore)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if len(result.ClusterLosses) > 0 {
		b.WriteString("Cluster losses:\n")
		for _, l := range result.ClusterLosses {
			marker := ""
			if l.Dominant {
				marker = "  [dominant]"
			}
			b.WriteString(p.Sprintf("  %-20s lost %.0f clicks (%.0f%% of total loss, %d pages)%s\n",
				l.Cluster, l.Loss, l.LossShare*100, l.Pages, marker))
		}
		b.WriteString("\n")
	}

	if len(result.Hypotheses) > 0 {
		b.WriteString("Ranked hypotheses:\n")
		for _, h := range result.Hypotheses {
			b.WriteString(fmt.Sprintf("  %d. [%s] %s — %s\n", h.Rank, h.Confidence, h.Key, h.Summary))
			for _, m := range h.MissingData {
				b.WriteString(fmt.Sprintf("       missing: %s\n", m))
			}
		}
		b.WriteString("\n")
	}

	if len(result.Tickets) > 0 {
		b.WriteString("Tickets:\n")
		for _, t := range result.Tickets {
			b.WriteString(p.Sprintf("  %s [%s/%s] %s (est. %.0f recoverable clicks)\n",
				t.ID, t.Priority, t.Owner, t.Title, t.Impact.RecoverableClicks))
		}
		b.WriteString("\n")
	}

	if len(run.Errors) > 0 {
		b.WriteString("Warnings:\n")
		for _, e := range run.Errors {
			b.WriteString("  " + e + "\n")
		}
	}

	return b.String()
}

// Summarize builds the one-line run summary stored on the run row.
func Summarize(classification model.Classification, confidence model.Confidence, hypotheses []model.Hypothesis, anomalies []model.Anomaly) string {
	if classification == model.ClassInconclusive {
		return "no significant regression detected"
	}
	if len(hypotheses) == 0 {
		return fmt.Sprintf("%s with %d anomalies, no supported hypothesis", classification, len(anomalies))
	}
	top := hypotheses[0]
	return fmt.Sprintf("%s (%s confidence): %s", classification, confidence, top.Summary)
}
