// Package ffmpeg runs the media tool for a subtitle run: extracting a speech
// ready WAV track and burning an SRT file into the video frames.
//
// Runner is the seam between argument construction and process execution so
// tests can substitute a fake tool.
package ffmpeg
