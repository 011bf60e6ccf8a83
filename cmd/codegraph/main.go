// Command codegraph extracts a property graph from a source tree and
// answers Cypher-dialect queries over it. Store-then-close lifecycle, one
// subcommand per operation, built on github.com/spf13/cobra.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var path string

	root := &cobra.Command{
		Use:           "codegraph",
		Short:         "Extract and query a property graph over a source tree",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&path, "path", ".", "root directory to index")

	root.AddCommand(
		newInitCmd(&path),
		newUpdateCmd(&path),
		newQueryCmd(&path),
		newStatusCmd(&path),
		newResetCmd(&path),
	)
	return root
}

func setupLogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}
