package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teampulse/teampulse/internal/runner"
)

var runFlags struct {
	job     string
	org     string
	dryRun  bool
	verbose bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute scheduled jobs as a one-shot batch",
	Long: `Executes the registered jobs and exits. Intended to be invoked by an
external scheduler (cron, Kubernetes CronJob); the process itself never
schedules anything.

Exit code is non-zero only when the batch could not run at all. Individual
job failures are recorded as failed executions and reported in the summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var orgID *uuid.UUID
		if runFlags.org != "" {
			id, err := uuid.Parse(runFlags.org)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			orgID = &id
		}

		a, closer, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer closer()

		r := runner.New(a.store, a.registry, a.execs, runner.Options{
			JobID:          runFlags.job,
			OrgID:          orgID,
			DryRun:         runFlags.dryRun,
			Verbose:        runFlags.verbose,
			OrgConcurrency: a.cfg.Runner.OrgConcurrency,
			Out:            os.Stdout,
		})

		_, err = r.Run(ctx)
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.job, "job", "", "run only this job id")
	runCmd.Flags().StringVar(&runFlags.org, "org", "", "run only for this organization id")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "report what would be created without writing notifications")
	runCmd.Flags().BoolVar(&runFlags.verbose, "verbose", false, "print per-invocation detail")
}
