// Package logging configures the charmbracelet/log logger shared by the
// crawler, supervisor, and CLI.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New creates a logger prefixed for one component, respecting the
// process-wide level set by SetLevel.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// SetLevel parses a level name (debug, info, warn, error) and sets it as
// the process-wide default; an unrecognized name falls back to info.
func SetLevel(name string) {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
