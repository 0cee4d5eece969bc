package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/steam-vanity-checker/internal/output"
	"github.com/JakeFAU/steam-vanity-checker/internal/resume"
	"github.com/JakeFAU/steam-vanity-checker/internal/vanity"
)

// newStatsCmd creates the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	var (
		logPath string
		names   int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarizes the full log",
		Long: `Replays the full log and reports totals by status. The latest row for
each candidate wins, so the numbers match what a resumed run would skip.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			path := logPath
			if path == "" {
				path = rt.cfg.Results.FullLog
			}
			norm, err := vanity.NewNormalizer(rt.cfg.Candidate.Pattern, rt.cfg.Candidate.CaseInsensitive)
			if err != nil {
				return withCode(ExitConfig, err)
			}
			sum, err := resume.Summarize(path, norm)
			if err != nil {
				return withCode(ExitFailure, fmt.Errorf("summarize %s: %w", path, err))
			}
			output.WriteStats(cmd.OutOrStdout(), path, sum, names)
			return nil
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "full log to read (defaults to results.full_log)")
	cmd.Flags().IntVar(&names, "names", 20, "list up to this many available names")
	return cmd
}
