package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/rankpulse/diagnose-cli/internal/notify"
	"github.com/rankpulse/diagnose-cli/internal/schedule"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a Temporal worker serving scheduled diagnosis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return eris.Wrap(err, "dial temporal")
		}
		defer c.Close()

		acts := &schedule.Activities{Pipeline: env.Pipeline}
		if cfg.Notify.WebhookURL != "" {
			acts.Notifier = notify.NewWebhook(cfg.Notify.WebhookURL, notify.WithRateLimit(cfg.Notify.RatePerMinute))
		}

		zap.L().Info("starting worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)

		w := schedule.NewWorker(c, cfg.Temporal.TaskQueue, acts)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "run worker")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
