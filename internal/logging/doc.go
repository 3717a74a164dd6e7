// Package logging assembles structured slog loggers and formatting helpers used
// across captioner.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with run IDs, stage names and correlation IDs. NewNop gives tests
// and optional wiring a logger that cannot fail.
package logging
