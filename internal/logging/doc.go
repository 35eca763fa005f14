// Package logging assembles structured slog loggers and formatting helpers used
// across vidqc.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so analysis code can tag log
// lines with the run ID, media file, and active check. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Log output goes to stderr (plus the configured log file) so stdout stays
// free for reports and JSON.
package logging
