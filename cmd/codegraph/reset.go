package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/store"
)

func newResetCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop every node, edge, and file hash from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(*path)
		},
	}
}

func runReset(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	if err := s.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Println("store reset")
	return nil
}
