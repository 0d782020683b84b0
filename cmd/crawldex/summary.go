package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crawldex/store"
	"crawldex/summary"
)

var summaryFlags struct {
	databasePath string
	count        int
	keywordCount int
	linkCount    int
}

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "print a summary of an already-built index to stdout",
		Args:  cobra.NoArgs,
		RunE:  runSummary,
	}
	f := cmd.Flags()
	f.StringVar(&summaryFlags.databasePath, "database-path", "", "path to the SQLite index database (required)")
	f.IntVar(&summaryFlags.count, "summary-count", -1, "pages to include (negative: all)")
	f.IntVar(&summaryFlags.keywordCount, "keyword-count", 10, "keywords per page (negative: all)")
	f.IntVar(&summaryFlags.linkCount, "link-count", 10, "outlinks per page (negative: all)")
	return cmd
}

func runSummary(cmd *cobra.Command, args []string) error {
	if summaryFlags.databasePath == "" {
		return fmt.Errorf("--database-path is required")
	}

	idx, err := store.Open(summaryFlags.databasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer idx.Close()

	return summary.Write(cmd.Context(), cmd.OutOrStdout(), idx, summary.Options{
		Count:        summaryFlags.count,
		KeywordCount: summaryFlags.keywordCount,
		LinkCount:    summaryFlags.linkCount,
	})
}
