package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/store"
)

func newStatusCmd(path *string) *cobra.Command {
	var schema bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print store statistics for the tracked root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(*path, schema)
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "also print node/edge kind counts, relationship patterns, and sample names")
	return cmd
}

func runStatus(path string, showSchema bool) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	nodeCount, err := s.CountNodes()
	if err != nil {
		return fmt.Errorf("count nodes: %w", err)
	}
	edgeCount, err := s.CountEdges()
	if err != nil {
		return fmt.Errorf("count edges: %w", err)
	}
	hashes, err := s.GetFileHashes()
	if err != nil {
		return fmt.Errorf("get file hashes: %w", err)
	}

	meta, err := s.GetMeta()
	if err != nil {
		fmt.Println("store has not been indexed yet")
	} else {
		fmt.Printf("root: %s\nlast indexed: %s\n", meta.RootPath, meta.IndexedAt)
	}
	fmt.Printf("files tracked: %d\nnodes: %d\nedges: %d\n", len(hashes), nodeCount, edgeCount)

	if !showSchema {
		return nil
	}
	info, err := s.GetSchema()
	if err != nil {
		return fmt.Errorf("get schema: %w", err)
	}
	printSchema(info)
	return nil
}

func printSchema(info *store.SchemaInfo) {
	fmt.Println("\nnode kinds:")
	for _, kc := range info.NodeKinds {
		fmt.Printf("  %-12s %d\n", kc.Kind, kc.Count)
	}
	fmt.Println("relationship kinds:")
	for _, kc := range info.RelationshipKinds {
		fmt.Printf("  %-12s %d\n", kc.Kind, kc.Count)
	}
	if len(info.RelationshipPatterns) > 0 {
		fmt.Println("relationship patterns:")
		for _, p := range info.RelationshipPatterns {
			fmt.Printf("  %s\n", p)
		}
	}
	if len(info.SampleFunctionNames) > 0 {
		fmt.Printf("sample functions: %s\n", strings.Join(info.SampleFunctionNames, ", "))
	}
	if len(info.SampleClassNames) > 0 {
		fmt.Printf("sample classes: %s\n", strings.Join(info.SampleClassNames, ", "))
	}
}
