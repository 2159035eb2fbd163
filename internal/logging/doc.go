// Package logging assembles the structured slog loggers used by the
// labelpress daemon, sender, and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, stages, and source files without threading attributes
// by hand. A no-op logger is provided for tests and wiring code that cannot
// fail.
package logging
