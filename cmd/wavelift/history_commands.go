package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"wavelift/internal/ledger"
	"wavelift/internal/stats"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer l.Close()

			batches, err := l.RecentBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches recorded")
				return nil
			}

			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					strconv.FormatInt(b.ID, 10),
					displayListID(b.ListID),
					formatTimestamp(b.StartedAt),
					b.Status,
					strconv.Itoa(b.Total),
					strconv.Itoa(b.Succeeded),
					strconv.Itoa(b.Skipped),
					strconv.Itoa(b.Failed),
					yesNo(b.ReportSent),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "List", "Started", "Status", "Items", "Stored", "Skipped", "Failed", "Reported"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				shouldColorize(out),
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "show <list_id>",
		Short: "Show one batch and its failed items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer l.Close()

			b, err := l.FindBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outcome := stats.OutcomeFailed.String()
			if all {
				outcome = ""
			}
			items, err := l.Items(cmd.Context(), b.ID, outcome)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch:     %s (run %d)\n", displayListID(b.ListID), b.ID)
			fmt.Fprintf(out, "Status:    %s\n", b.Status)
			fmt.Fprintf(out, "Started:   %s\n", formatTimestamp(b.StartedAt))
			fmt.Fprintf(out, "Finished:  %s\n", formatTimestamp(b.FinishedAt))
			fmt.Fprintf(out, "Items:     %d (%d stored, %d skipped, %d failed, %d rejected)\n",
				b.Total, b.Succeeded, b.Skipped, b.Failed, b.Rejected)
			fmt.Fprintf(out, "Reported:  %s\n", yesNo(b.ReportSent))

			if len(items) == 0 {
				if !all {
					fmt.Fprintln(out, "No failed items")
				}
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				detail := it.Detail
				if it.StoredKey != "" {
					detail = it.StoredKey
				}
				rows = append(rows, []string{it.Outcome, it.Stage, it.Locator, detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Outcome", "Stage", "Locator", "Detail"},
				rows, nil, shouldColorize(out),
			))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every item, not only failures")
	return cmd
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
