// Package logging wires up the structured logger shared across kgstore's
// components. Every component takes a zerolog.Logger at construction time
// rather than reaching for a package-level global, so tests can inject a
// silent or buffered logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// JSON selects structured JSON output instead of the console writer.
	JSON bool
	// Output overrides the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// New builds the root logger for a kgstore process.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, for use in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
