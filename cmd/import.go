package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/metrics"
)

var (
	importSite      string
	importSearch    string
	importAnalytics string
	importChecks    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import metric rollup CSVs for a site",
	Long:  "Upserts daily search, analytics, and page check rollups from CSV exports. Re-importing the same rows is safe.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importSearch == "" && importAnalytics == "" && importChecks == "" {
			return eris.New("at least one of --search, --analytics, --checks is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src, err := initSource(ctx, st)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck
		if err := src.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate rollups")
		}

		if importSearch != "" {
			rows, err := metrics.ReadSearchCSV(importSearch)
			if err != nil {
				return err
			}
			if err := src.InsertSearchDaily(ctx, importSite, rows); err != nil {
				return err
			}
			zap.L().Info("imported search rollups",
				zap.String("site", importSite),
				zap.Int("rows", len(rows)),
				zap.String("csv", importSearch),
			)
		}

		if importAnalytics != "" {
			rows, err := metrics.ReadAnalyticsCSV(importAnalytics)
			if err != nil {
				return err
			}
			if err := src.InsertAnalyticsDaily(ctx, importSite, rows); err != nil {
				return err
			}
			zap.L().Info("imported analytics rollups",
				zap.String("site", importSite),
				zap.Int("rows", len(rows)),
				zap.String("csv", importAnalytics),
			)
		}

		if importChecks != "" {
			rows, err := metrics.ReadPageChecksCSV(importChecks)
			if err != nil {
				return err
			}
			if err := src.InsertPageChecks(ctx, importSite, rows); err != nil {
				return err
			}
			zap.L().Info("imported page checks",
				zap.String("site", importSite),
				zap.Int("rows", len(rows)),
				zap.String("csv", importChecks),
			)
		}

		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSite, "site", "", "site identifier (required)")
	importCmd.Flags().StringVar(&importSearch, "search", "", "path to search rollup CSV")
	importCmd.Flags().StringVar(&importAnalytics, "analytics", "", "path to analytics rollup CSV")
	importCmd.Flags().StringVar(&importChecks, "checks", "", "path to page check CSV")
	_ = importCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(importCmd)
}
