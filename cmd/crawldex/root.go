package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var logLevel string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crawldex [urls...]",
		Short:         "crawl, index, and search a set of web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          runCrawl,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	addCrawlFlags(cmd)
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSummaryCmd())
	return cmd
}

// withSignalCancellation returns a context cancelled on SIGINT/SIGTERM so
// an in-flight crawl can restore its in-flight URLs and tear down
// cleanly instead of being killed outright.
func withSignalCancellation(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func init() {
	cobra.EnableCommandSorting = false
}
