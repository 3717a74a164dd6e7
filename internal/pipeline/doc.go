// Package pipeline turns one uploaded video into a subtitled, published copy.
//
// An Orchestrator run allocates per-run scratch paths, persists the upload,
// extracts mono 16 kHz audio, transcribes it under the shared ASR limiter,
// writes an SRT file, burns it into the video with ffmpeg, and uploads the
// result. The first failing stage is reported as a *StageError. Scratch files
// are released exactly once after the outcome is fixed, including when stage
// code panics.
//
// Progress transitions are published to an EventHub, recorded in the run
// journal, and counted in prometheus metrics. Journal and cleanup problems are
// logged but never change a run's outcome.
package pipeline
