// Package deps checks that the external binaries a run shells out to
// (ffmpeg, ffprobe, uvx) can be found on PATH.
package deps
