package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DeusData/codegraph/internal/cypher"
	"github.com/DeusData/codegraph/internal/store"
)

func newQueryCmd(path *string) *cobra.Command {
	var format string
	var limit int

	cmd := &cobra.Command{
		Use:   "query QUERY",
		Short: "Run a Cypher-dialect query against the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(*path, args[0], format, limit)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, or csv")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of rows printed, 0 means no extra cap")
	return cmd
}

func runQuery(path, query, format string, limit int) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	exec := &cypher.Executor{Store: s}
	result, err := exec.Execute(query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if limit > 0 && len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
	}

	switch strings.ToLower(format) {
	case "json":
		return printJSON(result)
	case "csv":
		return printCSV(result)
	case "table", "":
		return printTable(result)
	default:
		return fmt.Errorf("unknown format %q (want table, json, or csv)", format)
	}
}

func printJSON(result *cypher.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printCSV(result *cypher.Result) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(result.Columns); err != nil {
		return err
	}
	for _, row := range result.Rows {
		record := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			record[i] = fmt.Sprint(row[col])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func printTable(result *cypher.Result) error {
	if len(result.Rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = fmt.Sprint(row[col])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	fmt.Printf("(%d rows)\n", len(result.Rows))
	return w.Flush()
}
