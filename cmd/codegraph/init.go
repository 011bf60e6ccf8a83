package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/config"
	"github.com/DeusData/codegraph/internal/incremental"
	"github.com/DeusData/codegraph/internal/store"
)

func newInitCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Perform a full index of the tracked root, creating the store if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			return runInit(cmd.Context(), *path)
		},
	}
}

func runInit(ctx context.Context, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	result, err := incremental.Run(ctx, cfg, s, true)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	fmt.Printf("indexed %d files: %d nodes, %d edges\n",
		result.Added, result.Report.NodesWritten, result.Report.EdgesWritten)
	if len(result.ParseErrors) > 0 {
		fmt.Printf("%d files failed to parse\n", len(result.ParseErrors))
	}
	return nil
}

// loadConfig resolves path to an absolute root and loads its config.Config.
func loadConfig(path string) (*config.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
