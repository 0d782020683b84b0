package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crawldex/crawler"
	"crawldex/internal/logging"
	"crawldex/store"
	"crawldex/summary"
	"crawldex/supervisor"
)

var crawlFlags struct {
	pageCount           int
	databasePath        string
	summaryPath         string
	summaryCount        int
	keywordCount        int
	linkCount           int
	requestConcurrency  int
	indexConcurrency    int
	databaseConcurrency int
	noProgress          bool
}

func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&crawlFlags.pageCount, "page-count", 0, "pages to index before stopping (negative: number of seed URLs; 0: until the frontier drains)")
	f.StringVar(&crawlFlags.databasePath, "database-path", "", "path to the SQLite index database (required)")
	f.StringVar(&crawlFlags.summaryPath, "summary-path", "", "write a summary of the index to this path when the crawl finishes")
	f.IntVar(&crawlFlags.summaryCount, "summary-count", -1, "pages to include in the summary (negative: all)")
	f.IntVar(&crawlFlags.keywordCount, "keyword-count", 10, "keywords per page in the summary (negative: all)")
	f.IntVar(&crawlFlags.linkCount, "link-count", 10, "outlinks per page in the summary (negative: all)")
	f.IntVar(&crawlFlags.requestConcurrency, "request-concurrency", 6, "concurrent HTTP fetches")
	f.IntVar(&crawlFlags.indexConcurrency, "index-concurrency", 4, "concurrent page-indexing workers")
	f.IntVar(&crawlFlags.databaseConcurrency, "database-concurrency", 1, "database reader connections")
	f.BoolVar(&crawlFlags.noProgress, "no-progress", false, "suppress progress output")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	logging.SetLevel(logLevel)
	logger := logging.New("crawl")

	if crawlFlags.databasePath == "" {
		return fmt.Errorf("--database-path is required")
	}

	pageCount := crawlFlags.pageCount
	if pageCount < 0 {
		pageCount = len(args)
	}

	idx, err := store.OpenWithConcurrency(crawlFlags.databasePath, crawlFlags.databaseConcurrency)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer idx.Close()

	front := crawler.New()
	if len(args) > 0 {
		if err := front.Enqueue(args, false, false); err != nil {
			return fmt.Errorf("enqueue seeds: %w", err)
		}
	}

	sup := supervisor.New(supervisor.Config{
		RequestConcurrency: crawlFlags.requestConcurrency,
		IndexConcurrency:   crawlFlags.indexConcurrency,
		PageCount:          pageCount,
	}, front, crawler.NewFetcher(nil), idx, logger)

	ctx, cleanup := withSignalCancellation(cmd.Context())
	defer cleanup()

	n, err := sup.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if !crawlFlags.noProgress {
		fmt.Fprintf(os.Stderr, "indexed %d pages\n", n)
	}

	if crawlFlags.summaryPath == "" {
		return nil
	}
	return writeSummaryFile(context.Background(), idx, crawlFlags.summaryPath, summary.Options{
		Count:        crawlFlags.summaryCount,
		KeywordCount: crawlFlags.keywordCount,
		LinkCount:    crawlFlags.linkCount,
	})
}

func writeSummaryFile(ctx context.Context, idx *store.Store, path string, opts summary.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer f.Close()
	return summary.Write(ctx, f, idx, opts)
}
