package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/notify"
)

var (
	diagnoseSite   string
	diagnoseAsOf   string
	diagnoseType   string
	diagnoseJSON   bool
	diagnoseNotify bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run traffic regression diagnosis for a site",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := parseRunType(diagnoseType)
		if err != nil {
			return err
		}

		asOf := time.Now().UTC()
		if diagnoseAsOf != "" {
			if asOf, err = time.Parse("2006-01-02", diagnoseAsOf); err != nil {
				return eris.Wrapf(err, "parse --as-of %q", diagnoseAsOf)
			}
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, runErr := env.Pipeline.Run(ctx, diagnoseSite, typ, asOf)
		if result != nil {
			if diagnoseJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return eris.Wrap(err, "encode result")
				}
			} else {
				fmt.Fprintln(os.Stdout, result.Report)
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "diagnose")
		}

		if diagnoseNotify && cfg.Notify.WebhookURL != "" {
			n := notify.NewWebhook(cfg.Notify.WebhookURL, notify.WithRateLimit(cfg.Notify.RatePerMinute))
			if err := n.NotifyRun(ctx, result); err != nil {
				zap.L().Warn("run notification failed",
					zap.String("run_id", result.Run.ID),
					zap.Error(err),
				)
			}
		}

		return nil
	},
}

func parseRunType(s string) (model.RunType, error) {
	switch s {
	case "", "full":
		return model.RunTypeFull, nil
	case "smoke":
		return model.RunTypeSmoke, nil
	case "scheduled":
		return model.RunTypeScheduled, nil
	default:
		return "", eris.Errorf("unknown run type %q (full, smoke, scheduled)", s)
	}
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseSite, "site", "", "site identifier (required)")
	diagnoseCmd.Flags().StringVar(&diagnoseAsOf, "as-of", "", "diagnosis reference date YYYY-MM-DD (default today)")
	diagnoseCmd.Flags().StringVar(&diagnoseType, "type", "full", "run type: full, smoke, or scheduled")
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "print the full result as JSON instead of the text report")
	diagnoseCmd.Flags().BoolVar(&diagnoseNotify, "notify", false, "post the run summary to the configured webhook")
	_ = diagnoseCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(diagnoseCmd)
}
