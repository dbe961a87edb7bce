// Package logging constructs the process's structured logger. Grounded on
// the call shape "logger.New(*verboseFlag)" in the teacher's
// indexer/cmd/indexer/main.go.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New returns a slog.Logger at Debug level when verbose, Info otherwise.
// It uses a colorized console handler when stderr is a terminal and falls
// back to JSON for container/log-aggregator consumption.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if isTerminal(os.Stderr) {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
