package common

import (
	"log/slog"
	"os"
)

type LoggingOpts struct {
	// Debug enables debug-level log messages.
	Debug bool

	// JSON switches the output format from human-readable text to JSON.
	JSON bool

	// Service is added as a 'service' attribute to every log record.
	Service string

	// Version is added as a 'version' attribute to every log record.
	Version string
}

// SetupLogger creates the process-wide slog logger. Text output goes to
// stderr, JSON output to stdout.
func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}

	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}

	return log
}
