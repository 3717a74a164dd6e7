// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Uploads are inspected before audio extraction so a file without a video
// stream is rejected as bad input and a file without audio skips
// transcription instead of failing inside ffmpeg.
package ffprobe
