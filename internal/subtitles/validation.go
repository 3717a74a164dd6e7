package subtitles

import (
	"fmt"
	"os"
)

// ValidateContent checks an SRT file and returns the issues found. An empty
// file is valid: a run with no speech renders a video without captions.
// Cues must be numbered 1..n in order.
func ValidateContent(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("read_error: %v", err)}
	}
	cues, err := Parse(data)
	if err != nil {
		return []string{fmt.Sprintf("parse_error: %v", err)}
	}
	var issues []string
	for idx, cue := range cues {
		if cue.Index != idx+1 {
			issues = append(issues, fmt.Sprintf("cue_numbering: position %d has index %d", idx+1, cue.Index))
		}
	}
	return issues
}
