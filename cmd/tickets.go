package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/store"
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Inspect and update remediation tickets",
}

// -- tickets list --

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remediation tickets",
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

		runID, _ := cmd.Flags().GetString("run")
		status, _ := cmd.Flags().GetString("status")
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		tickets, err := st.ListTickets(ctx, store.TicketFilter{
			RunID:  runID,
			Status: model.TicketStatus(status),
			Owner:  model.Owner(owner),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "tickets list")
		}

		if len(tickets) == 0 {
			fmt.Fprintln(os.Stderr, "No tickets found.")
			return nil
		}

		formatTicketsList(os.Stdout, tickets)
		return nil
	},
}

// -- tickets update --

var ticketsUpdateCmd = &cobra.Command{
	Use:   "update <ticket-id> <status>",
	Short: "Update a ticket's status (open, dismissed, done)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.TicketStatus(args[1])
		switch status {
		case model.TicketOpen, model.TicketDismissed, model.TicketDone:
		default:
			return eris.Errorf("unknown ticket status %q (open, dismissed, done)", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.UpdateTicketStatus(ctx, args[0], status); err != nil {
			return eris.Wrap(err, "tickets update")
		}

		fmt.Fprintf(os.Stdout, "%s -> %s\n", args[0], status)
		return nil
	},
}

func init() {
	ticketsListCmd.Flags().String("run", "", "filter by run id")
	ticketsListCmd.Flags().String("status", "", "filter by ticket status (open, dismissed, done)")
	ticketsListCmd.Flags().String("owner", "", "filter by owner team (SEO, DEV, ADS)")
	ticketsListCmd.Flags().Int("limit", 100, "max number of tickets to display")

	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsUpdateCmd)
	rootCmd.AddCommand(ticketsCmd)
}

// formatTicketsList writes a tabular list of tickets to w.
func formatTicketsList(out io.Writer, tickets []model.Ticket) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPRI\tOWNER\tSTATUS\tRECOVERABLE\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t---\t-----\t------\t-----------\t-----")

	for _, t := range tickets {
		title := t.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%s\n",
			t.ID,
			t.Priority,
			t.Owner,
			t.Status,
			t.Impact.RecoverableClicks,
			title,
		)
	}
	_ = w.Flush()
}
