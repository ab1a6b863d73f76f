package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/libranswer/libranswer/internal/bibsource"
	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/index"
	"github.com/libranswer/libranswer/internal/logging"
	"github.com/libranswer/libranswer/internal/store"
	"github.com/libranswer/libranswer/internal/watcher"
)

type indexOptions struct {
	profile string
	quiet   bool
	watch   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the active profile's bibliographic library",
		Long: `Read the profile's bibliographic source export, extract and chunk
each PDF, embed the chunks, and upsert them into the dense and sparse
indexes (spec §4.5).

Every run re-extracts and re-embeds every item, replacing its previous
chunks; the content hash recorded per item is not used to skip
unchanged items.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.profile, "profile", "", "Profile slug (default: active profile)")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Suppress per-item progress output")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and re-index whenever the bibliographic source changes")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	env, err := buildEnvironment(ctx, opts.profile)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if env.settings.BibliographicPath == "" {
		return liberrors.ValidationErr(fmt.Sprintf("profile %q has no bibliographic_source configured; run 'libranswer profile config'", env.profile.Slug), nil)
	}

	if err := indexOnce(ctx, cmd, env, opts); err != nil {
		return err
	}

	if !opts.watch {
		return nil
	}
	return watchAndReindex(ctx, cmd, env, opts)
}

// indexOnce runs one full collect-then-index pass (spec §4.5), the body
// both the plain `index` command and the `--watch` loop share.
func indexOnce(ctx context.Context, cmd *cobra.Command, env *environment, opts indexOptions) error {
	src := bibsource.NewJSONSource(env.settings.BibliographicPath)
	bibItems, err := bibsource.Collect(ctx, src)
	if err != nil {
		return liberrors.ExtractionError("collect bibliographic source", err)
	}
	if len(bibItems) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No items found in bibliographic source.")
		return nil
	}

	items := make([]*store.Item, 0, len(bibItems))
	for _, b := range bibItems {
		items = append(items, &store.Item{
			ID:      b.ID,
			Title:   b.Title,
			Authors: b.Authors,
			Year:    b.Year,
			PDFPath: b.PDFPath,
		})
	}

	var sink index.ProgressSink = index.NoOpProgressSink{}
	if !opts.quiet {
		sink = newConsoleProgressSink(cmd.OutOrStdout())
	}

	runner := index.NewRunner(env.library, env.embedder, newChunker(), index.RunnerConfig{}, sink)
	slog.Info("index_started", slog.String("profile", env.profile.Slug), slog.Int("items", len(items)))
	report, err := runner.Index(ctx, items)
	if err != nil {
		return err
	}

	printIndexReport(cmd, report)
	return nil
}

// watchAndReindex watches the directory holding the bibliographic source
// export and re-runs indexOnce whenever that file changes, grounded on
// internal/watcher's hybrid fsnotify/polling watcher (adapted from the
// teacher's source-tree watcher to watch one export file instead of a
// project's whole working tree). Each re-index is a full pass: the runner
// replaces every item's chunks, including items whose content is unchanged.
func watchAndReindex(ctx context.Context, cmd *cobra.Command, env *environment, opts indexOptions) error {
	dir := filepath.Dir(env.settings.BibliographicPath)
	target := filepath.Base(env.settings.BibliographicPath)

	watchOpts := watcher.DefaultOptions()
	watchOpts.Extensions = []string{filepath.Ext(target)}
	w, err := watcher.NewHybridWatcher(watchOpts)
	if err != nil {
		return liberrors.Wrap("watcher-init-failed", err)
	}
	defer func() { _ = w.Stop() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\nWatching %s for changes (ctrl-c to stop)...\n", env.settings.BibliographicPath)

	go func() {
		if err := w.Start(ctx, dir); err != nil && ctx.Err() == nil {
			slog.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case events, ok := <-w.Events():
			if !ok {
				return nil
			}
			if !anyEventTargets(events, target) {
				continue
			}
			_, _ = fmt.Fprintf(out, "\n%s changed, re-indexing...\n", target)
			if err := indexOnce(ctx, cmd, env, opts); err != nil {
				_, _ = fmt.Fprintf(out, "re-index failed: %v\n", err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func anyEventTargets(events []watcher.FileEvent, name string) bool {
	for _, e := range events {
		if filepath.Base(e.Path) == name {
			return true
		}
	}
	return false
}

func printIndexReport(cmd *cobra.Command, report *index.Report) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\nIndexed %d/%d items (%d chunks) in %s\n",
		report.Succeeded, report.Total, report.Chunks, report.Duration.Round(100*time.Millisecond))

	if len(report.SkipReasons) > 0 {
		_, _ = fmt.Fprintf(out, "\nSkipped (%d):\n", len(report.SkipReasons))
		for _, s := range report.SkipReasons {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", s.ItemID, s.Reason)
		}
	}
	if len(report.ItemErrors) > 0 {
		_, _ = fmt.Fprintf(out, "\nErrors (%d):\n", len(report.ItemErrors))
		for _, e := range report.ItemErrors {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", e.ItemID, e.Message)
		}
	}
}
