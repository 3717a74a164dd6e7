// Package subtitles renders transcripts as SRT.
//
// FormatTimestamp and Serialize produce the numbered HH:MM:SS,mmm blocks that
// ffmpeg's subtitles filter burns into the frame. Parse and ValidateContent
// read the same format back for checks before rendering.
package subtitles
