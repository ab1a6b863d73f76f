package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd surfaces the query telemetry SPEC_FULL.md §6 commits to
// (internal/telemetry, wired into the orchestrator via env.go), grounded
// on the teacher stats command's snapshot-then-print shape.
func newStatsCmd() *cobra.Command {
	var profileSlug string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query telemetry for the active profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, profileSlug)
		},
	}
	cmd.Flags().StringVar(&profileSlug, "profile", "", "Profile slug (default: active profile)")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, profileSlug string) error {
	env, err := buildEnvironment(ctx, profileSlug)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	snap := env.metrics.Snapshot()
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(out, "Total queries:      %d\n", snap.TotalQueries)
	_, _ = fmt.Fprintf(out, "Zero-result rate:   %.1f%%\n", snap.ZeroResultPercentage())
	_, _ = fmt.Fprintf(out, "Repetition:         %s\n", snap.RepetitionSummary())

	if len(snap.LatencyDistribution) > 0 {
		_, _ = fmt.Fprintln(out, "\nLatency distribution:")
		for bucket, count := range snap.LatencyDistribution {
			_, _ = fmt.Fprintf(out, "  %-10s %d\n", bucket, count)
		}
	}
	if len(snap.TopTerms) > 0 {
		_, _ = fmt.Fprintln(out, "\nTop terms:")
		for _, t := range snap.TopTerms {
			_, _ = fmt.Fprintf(out, "  %-20s %d\n", t.Term, t.Count)
		}
	}
	if len(snap.ZeroResultQueries) > 0 {
		_, _ = fmt.Fprintln(out, "\nRecent zero-result queries:")
		for _, q := range snap.ZeroResultQueries {
			_, _ = fmt.Fprintf(out, "  %s\n", q)
		}
	}
	return nil
}
