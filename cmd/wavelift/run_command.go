package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wavelift/internal/audit"
	"wavelift/internal/controlplane"
	"wavelift/internal/ledger"
	"wavelift/internal/logging"
	"wavelift/internal/preflight"
	"wavelift/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool
	var skipBucketCheck bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch one batch from the control plane and ingest it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			adapters, err := runner.NewAdapters(cfg, logger)
			if err != nil {
				return err
			}

			if !skipPreflight {
				var bucket preflight.BucketChecker
				if !skipBucketCheck {
					bucket = adapters.Store
				}
				results := preflight.RunAll(runCtx, cfg, bucket)
				for _, r := range results {
					if !r.Passed {
						logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
							logging.String("check", r.Name),
							logging.String("detail", r.Detail),
						)
					}
				}
				if err := preflight.Err(results); err != nil {
					return err
				}
			}

			trail, err := audit.Open(cfg.Paths.AuditLog)
			if err != nil {
				return err
			}
			defer trail.Close()

			ldg, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer ldg.Close()

			r, err := runner.New(runner.Options{
				Config:       cfg,
				Logger:       logger,
				ControlPlane: controlplane.New(cfg, logger),
				Deps:         adapters.Deps,
				StoredURL:    adapters.Store.URL,
				Ledger:       ldg,
				Audit:        trail,
			})
			if err != nil {
				return err
			}

			summary, err := r.Run(runCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			snap := summary.Snapshot
			fmt.Fprintf(out, "Batch %s: %s (%d stored, %d skipped, %d failed, %d rejected) in %s\n",
				displayListID(summary.ListID), summary.Report.Status,
				snap.Succeeded, snap.Skipped, snap.Failed, len(summary.Rejections),
				snap.Elapsed.Round(time.Millisecond))
			if summary.ListID != "" {
				fmt.Fprintf(out, "Report delivered: %s\n", yesNo(summary.ReportSent))
			}
			if err := runCtx.Err(); err != nil {
				return context.Cause(runCtx)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory, binary and bucket checks")
	cmd.Flags().BoolVar(&skipBucketCheck, "skip-bucket-check", false, "Skip only the bucket reachability check")
	return cmd
}

func displayListID(id string) string {
	if id == "" {
		return "(no list id)"
	}
	return id
}
