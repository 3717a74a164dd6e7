// Package api defines wire-format types and converters for the HTTP API.
// It translates journal rows and dependency checks into transport-friendly
// DTOs so clients never couple to internal types.
//
// # Key Types
//
// SubtitleResponse: the result of POST /api/subtitles. Failures carry only
// the stage, the client/internal kind, and the run ID; causes stay server-side.
//
// Run/RunListResponse: journal rows for /api/runs and `captioner runs --json`.
//
// DaemonStatus: running state, journal counters, and dependency availability.
//
// # Design Notes
//
// JSON tags are snake_case to match the original subtitle endpoint's
// `video_url` field. Timestamps use RFC3339 with milliseconds.
package api
