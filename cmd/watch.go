package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"amalgam/pkg/ignore"
	"amalgam/pkg/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ignoreFile holds watch ignore patterns, looked up in the source directory.
const ignoreFile = ".mergeignore"

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Merge, then merge again whenever a header changes",
		Long: `Watch performs a merge, then watches the source directory and merges again
whenever a header changes. A failed merge is reported and watching continues.
Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			debounce, err := cfg.DebounceDuration()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			filter := ignore.New(opts.logger)
			filter.Compile(cfg.Watch.Ignore...)
			if err := filter.CompileFile(filepath.Join(cfg.SourceDir, ignoreFile)); err != nil {
				return fmt.Errorf("failed to load ignore patterns: %w", err)
			}

			exclude := []string{cfg.Target}
			if cfg.Tree != "" {
				exclude = append(exclude, cfg.Tree)
			}

			rebuild := func(ctx context.Context) error {
				return opts.mergeOnce(ctx, cmd, cfg)
			}

			// The first merge may fail; the fix is expected to arrive as a change.
			_ = rebuild(ctx)

			w, err := watch.New(watch.Options{
				Root:     cfg.SourceDir,
				Debounce: debounce,
				Filter:   filter,
				Exclude:  exclude,
			}, rebuild, opts.logger)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer w.Stop()

			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to watch %s: %w", cfg.SourceDir, err)
			}

			<-w.Done()
			stats := w.Stats()
			opts.logger.Info("Stopped watching",
				zap.Int("events", stats.Events),
				zap.Int("rebuilds", stats.Rebuilds),
				zap.Int("failures", stats.Failures))
			return nil
		},
	}
}
