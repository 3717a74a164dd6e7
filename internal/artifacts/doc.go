// Package artifacts owns the scratch files of a subtitle run.
//
// Allocate names the input, audio, subtitle and output paths for a run ID
// without touching the disk; Release removes them best effort and reports
// what could not be deleted. SweepStale clears files a crashed process left
// behind.
package artifacts
