package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/incremental"
	"github.com/DeusData/codegraph/internal/store"
	"github.com/DeusData/codegraph/internal/watcher"
)

func newUpdateCmd(path *string) *cobra.Command {
	var full bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Reconcile the store with the tracked root's current contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			if watch {
				return runWatch(cmd.Context(), *path)
			}
			return runUpdate(cmd.Context(), *path, full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "drop the store and re-index every file, ignoring content hashes")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running, polling the tracked root and updating the store on change")
	return cmd
}

// runWatch runs one incremental update, then hands off to internal/watcher to poll
// for further changes until the command is interrupted.
func runWatch(ctx context.Context, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	if _, err := incremental.Run(ctx, cfg, s, false); err != nil {
		return fmt.Errorf("initial update: %w", err)
	}

	w := watcher.New(cfg, func(ctx context.Context) error {
		_, err := incremental.Run(ctx, cfg, s, false)
		return err
	})
	slog.Info("update.watch.start", "path", cfg.RootPath)
	w.Run(ctx)
	return nil
}

func runUpdate(ctx context.Context, path string, full bool) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	result, err := incremental.Run(ctx, cfg, s, full)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	fmt.Printf("added=%d modified=%d deleted=%d unchanged=%d nodes_written=%d edges_written=%d\n",
		result.Added, result.Modified, result.Deleted, result.Unchanged,
		result.Report.NodesWritten, result.Report.EdgesWritten)
	if len(result.ParseErrors) > 0 {
		fmt.Printf("%d files failed to parse\n", len(result.ParseErrors))
	}
	return nil
}
