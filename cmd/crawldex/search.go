package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crawldex/retrieve"
	"crawldex/store"
)

var searchFlags struct {
	databasePath string
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "run a one-shot query against an already-built index",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().StringVar(&searchFlags.databasePath, "database-path", "", "path to the SQLite index database (required)")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchFlags.databasePath == "" {
		return fmt.Errorf("--database-path is required")
	}

	idx, err := store.Open(searchFlags.databasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer idx.Close()

	engine := retrieve.NewEngine(idx)
	results, _, err := engine.Search(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	for _, r := range results {
		fmt.Printf("%.4f\t%s\n", r.Score, r.URL)
	}
	return nil
}
