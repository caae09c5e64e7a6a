package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rankpulse/diagnose-cli/internal/export"
	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect diagnosis run history",
	Long:  "Commands for listing, viewing, exporting, and summarizing diagnosis runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List diagnosis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		site, _ := cmd.Flags().GetString("site")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			SiteID: site,
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		result, err := loadRunResult(cmd, st, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// -- runs export --

var runsExportOut string

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run and its findings to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		result, err := loadRunResult(cmd, st, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}

		out := runsExportOut
		if out == "" {
			out = fmt.Sprintf("run-%s.xlsx", truncateID(result.Run.ID))
		}
		if err := export.WriteRunWorkbook(out, result); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %s\n", out)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		site, _ := cmd.Flags().GetString("site")
		runs, err := st.ListRuns(ctx, store.RunFilter{SiteID: site, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func loadRunResult(cmd *cobra.Command, st store.Store, runID string) (*model.DiagnosisResult, error) {
	ctx := cmd.Context()

	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &model.DiagnosisResult{Run: *run}
	if result.Anomalies, err = st.ListAnomalies(ctx, run.ID); err != nil {
		return nil, err
	}
	if result.ClusterLosses, err = st.ListClusterLosses(ctx, run.ID); err != nil {
		return nil, err
	}
	if result.Hypotheses, err = st.ListHypotheses(ctx, run.ID); err != nil {
		return nil, err
	}
	if result.Tickets, err = st.ListTickets(ctx, store.TicketFilter{RunID: run.ID}); err != nil {
		return nil, err
	}
	return result, nil
}

func init() {
	runsListCmd.Flags().String("site", "", "filter by site identifier")
	runsListCmd.Flags().String("status", "", "filter by run status (running, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsExportCmd.Flags().StringVar(&runsExportOut, "out", "", "output path (default run-<id>.xlsx)")

	runsStatsCmd.Flags().String("site", "", "filter by site identifier")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total            int
	Completed        int
	Failed           int
	Running          int
	Tickets          int
	ByClassification map[model.Classification]int
	AvgDurSecs       float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	s := runStats{ByClassification: make(map[model.Classification]int)}
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
			if r.Classification != "" {
				s.ByClassification[r.Classification]++
			}
			if r.FinishedAt != nil {
				totalDur += r.FinishedAt.Sub(r.StartedAt)
				durCount++
			}
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Running++
		}
		s.Tickets += r.TicketCount
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSITE\tTYPE\tSTATUS\tCLASSIFICATION\tCONF\tANOMALIES\tTICKETS\tAS_OF")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t--------------\t----\t---------\t-------\t-----")

	for _, r := range runs {
		site := r.SiteID
		if len(site) > 30 {
			site = site[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			site,
			r.Type,
			r.Status,
			r.Classification,
			r.Confidence,
			r.AnomalyCount,
			r.TicketCount,
			r.AsOf.Format("2006-01-02"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Tickets created:\t%d\n", s.Tickets)

	classes := make([]model.Classification, 0, len(s.ByClassification))
	for c := range s.ByClassification {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	for _, c := range classes {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", c, s.ByClassification[c])
	}

	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
