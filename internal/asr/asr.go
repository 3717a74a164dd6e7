package asr

import (
	"context"
	"strings"
)

// Segment is one timed utterance reported by an engine. ID is engine-assigned
// and carries no meaning for subtitle numbering.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the ordered output of one transcription.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

// Engine converts an audio file into timed text segments. Implementations
// must be safe for concurrent use.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, audioPath string) (Transcript, error)

// Transcribe calls f.
func (f EngineFunc) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	return f(ctx, audioPath)
}

// Text joins the non-empty segment texts with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
