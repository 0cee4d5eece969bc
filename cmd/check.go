package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/engine"
	"github.com/JakeFAU/steam-vanity-checker/internal/output"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// newCheckCmd creates the 'check' subcommand.
func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Checks candidates for availability",
		Long: `Reads candidates from the wordlist (or the random word service with
--random), skips names already present in the full log, and probes the rest
concurrently. Ctrl-C stops admitting new names and lets in-flight checks
finish within the grace period.`,
		RunE: runCheckCommand,
	}
	f := cmd.Flags()
	f.String("wordlist", "", "newline-delimited candidate file")
	f.Bool("random", false, "pull candidates from the random word service")
	f.Int("concurrency", 0, "maximum probes in flight")
	f.Int("max-checks", 0, "stop after this many checks (0 = unlimited)")
	f.Bool("no-resume", false, "re-check names already in the full log")
	f.Bool("verbose", false, "print taken and error results too")
	f.Bool("no-color", false, "disable colored output")
	f.Bool("serve", false, "run the status server during the check")
	f.String("addr", "", "status server listen address")
	return cmd
}

func runCheckCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	logger := rt.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, rt.cfg, logger)
	if err != nil {
		return withCode(ExitFailure, fmt.Errorf("initialize services: %w", err))
	}
	defer a.Close()

	report, runErr := engine.Run(ctx, rt.cfg, engine.Options{
		Logger:     logger,
		Stdout:     cmd.OutOrStdout(),
		Repository: a.Repository(),
		Publisher:  a.Publisher(),
		BlobStore:  a.BlobStore(),
	})

	out := cmd.OutOrStdout()
	if report.Snapshot.StartedAt.IsZero() {
		if errors.Is(runErr, vanity.ErrSourceEmpty) {
			fmt.Fprintln(out, "Nothing to check: the candidate source has no usable names.")
			return nil
		}
	} else {
		output.WriteRunSummary(out, output.RunSummary{
			Snapshot:     report.Snapshot,
			Skipped:      report.Skipped,
			Dropped:      report.Scheduler.Dropped,
			FullLog:      rt.cfg.Results.FullLog,
			AvailableLog: rt.cfg.Results.AvailableLog,
			Exported:     report.Exported,
		})
	}

	switch {
	case runErr == nil, errors.Is(runErr, vanity.ErrSourceEmpty):
		return nil
	case errors.Is(runErr, context.Canceled):
		logger.Warn("run interrupted", zap.Int("checked", report.Snapshot.Checked))
		return withCode(ExitInterrupted, errors.New("interrupted; completed checks are saved and will be skipped next run"))
	default:
		return withCode(ExitFailure, runErr)
	}
}
