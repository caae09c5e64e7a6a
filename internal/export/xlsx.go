// Package export writes run findings to spreadsheet workbooks for sharing
// outside the CLI.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

const dateTimeFormat = "2006-01-02 15:04:05"

// WriteRunWorkbook writes one run and all its findings to an xlsx workbook at
// path. Sheets: Run, Anomalies, Cluster Losses, Hypotheses, Tickets.
func WriteRunWorkbook(path string, result *model.DiagnosisResult) error {
	f := xlsx.NewFile()

	if err := addRunSheet(f, &result.Run); err != nil {
		return err
	}
	if err := addAnomalySheet(f, result.Anomalies); err != nil {
		return err
	}
	if err := addLossSheet(f, result.ClusterLosses); err != nil {
		return err
	}
	if err := addHypothesisSheet(f, result.Hypotheses); err != nil {
		return err
	}
	if err := addTicketSheet(f, result.Tickets); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addRunSheet(f *xlsx.File, run *model.Run) error {
	sheet, err := f.AddSheet("Run")
	if err != nil {
		return eris.Wrap(err, "export: add run sheet")
	}

	kv := func(key, value string) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		row.AddCell().Value = value
	}

	kv("Run ID", run.ID)
	kv("Site", run.SiteID)
	kv("Type", string(run.Type))
	kv("Status", string(run.Status))
	kv("As of", run.AsOf.Format("2006-01-02"))
	kv("Started", run.StartedAt.Format(dateTimeFormat))
	if run.FinishedAt != nil {
		kv("Finished", run.FinishedAt.Format(dateTimeFormat))
	}
	kv("Classification", string(run.Classification))
	kv("Confidence", string(run.Confidence))
	kv("Summary", run.Summary)
	if len(run.Errors) > 0 {
		kv("Warnings", strings.Join(run.Errors, "; "))
	}
	return nil
}

func addAnomalySheet(f *xlsx.File, anomalies []model.Anomaly) error {
	sheet, err := f.AddSheet("Anomalies")
	if err != nil {
		return eris.Wrap(err, "export: add anomaly sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Metric", "Scope", "Type", "Observed", "Baseline", "Delta %", "Z-score"} {
		header.AddCell().Value = h
	}

	for _, a := range anomalies {
		row := sheet.AddRow()
		row.AddCell().Value = a.Metric
		row.AddCell().Value = scopeLabel(a.Scope)
		row.AddCell().Value = string(a.Type)
		row.AddCell().SetFloat(a.Observed)
		row.AddCell().SetFloat(a.Baseline)
		row.AddCell().SetFloat(a.DeltaPct)
		if a.ZScore != nil {
			row.AddCell().SetFloat(*a.ZScore)
		} else {
			row.AddCell().Value = ""
		}
	}
	return nil
}

func addLossSheet(f *xlsx.File, losses []model.ClusterLoss) error {
	sheet, err := f.AddSheet("Cluster Losses")
	if err != nil {
		return eris.Wrap(err, "export: add loss sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Cluster", "Pages", "Lost Clicks", "Share of Loss", "Dominant"} {
		header.AddCell().Value = h
	}

	for _, l := range losses {
		row := sheet.AddRow()
		row.AddCell().Value = l.Cluster
		row.AddCell().SetInt(l.Pages)
		row.AddCell().SetFloat(l.Loss)
		row.AddCell().SetFloat(l.LossShare)
		row.AddCell().SetBool(l.Dominant)
	}
	return nil
}

func addHypothesisSheet(f *xlsx.File, hypotheses []model.Hypothesis) error {
	sheet, err := f.AddSheet("Hypotheses")
	if err != nil {
		return eris.Wrap(err, "export: add hypothesis sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Rank", "Key", "Summary", "Confidence", "Evidence"} {
		header.AddCell().Value = h
	}

	for _, h := range hypotheses {
		var statements []string
		for _, ev := range h.Evidence {
			statements = append(statements, ev.Statement)
		}

		row := sheet.AddRow()
		row.AddCell().SetInt(h.Rank)
		row.AddCell().Value = string(h.Key)
		row.AddCell().Value = h.Summary
		row.AddCell().Value = string(h.Confidence)
		row.AddCell().Value = strings.Join(statements, "\n")
	}
	return nil
}

func addTicketSheet(f *xlsx.File, tickets []model.Ticket) error {
	sheet, err := f.AddSheet("Tickets")
	if err != nil {
		return eris.Wrap(err, "export: add ticket sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"ID", "Title", "Owner", "Priority", "Status", "Recoverable Clicks", "Created"} {
		header.AddCell().Value = h
	}

	for _, t := range tickets {
		row := sheet.AddRow()
		row.AddCell().Value = t.ID
		row.AddCell().Value = t.Title
		row.AddCell().Value = string(t.Owner)
		row.AddCell().Value = string(t.Priority)
		row.AddCell().Value = string(t.Status)
		row.AddCell().SetFloat(t.Impact.RecoverableClicks)
		row.AddCell().Value = t.CreatedAt.Format(dateTimeFormat)
	}
	return nil
}

func scopeLabel(scope map[string]string) string {
	if cluster, ok := scope["cluster"]; ok {
		return cluster
	}
	return "site"
}
