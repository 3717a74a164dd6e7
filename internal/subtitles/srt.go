package subtitles

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"captioner/internal/asr"
	"captioner/internal/services"
)

// Cue is one numbered SRT block.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Serialize renders segments as SRT. Cues are numbered by position starting
// at 1; engine segment IDs are ignored. Text is trimmed of surrounding
// whitespace. Timestamps are written as given, without reordering.
func Serialize(segments []asr.Segment) ([]byte, error) {
	var buf bytes.Buffer
	for idx, seg := range segments {
		start, err := FormatTimestamp(seg.Start)
		if err != nil {
			return nil, fmt.Errorf("segment %d start: %w", idx+1, err)
		}
		end, err := FormatTimestamp(seg.End)
		if err != nil {
			return nil, fmt.Errorf("segment %d end: %w", idx+1, err)
		}
		buf.WriteString(strconv.Itoa(idx + 1))
		buf.WriteByte('\n')
		buf.WriteString(start)
		buf.WriteString(" --> ")
		buf.WriteString(end)
		buf.WriteByte('\n')
		buf.WriteString(strings.TrimSpace(seg.Text))
		buf.WriteString("\n\n")
	}
	return buf.Bytes(), nil
}

// Parse reads numbered SRT blocks. CRLF line endings and a UTF-8 BOM are
// tolerated. Multi-line cue text is joined with "\n".
func Parse(data []byte) ([]Cue, error) {
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	var cues []Cue
	for i := 0; i < len(lines); {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid cue index %q", i+1, lines[i])
		}
		i++
		if i >= len(lines) {
			return nil, fmt.Errorf("cue %d: missing timing line", index)
		}
		startText, endText, ok := strings.Cut(lines[i], "-->")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid timing line %q", i+1, lines[i])
		}
		start, err := ParseTimestamp(startText)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		end, err := ParseTimestamp(endText)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		i++
		var text []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			text = append(text, lines[i])
			i++
		}
		cues = append(cues, Cue{Index: index, Start: start, End: end, Text: strings.Join(text, "\n")})
	}
	return cues, nil
}

// WriteFile writes SRT content and fsyncs it before returning.
func WriteFile(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return services.Wrap(services.ErrTransient, "subtitle-write", "open", path, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return services.Wrap(services.ErrTransient, "subtitle-write", "write", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return services.Wrap(services.ErrTransient, "subtitle-write", "sync", path, err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "subtitle-write", "close", path, err)
	}
	return nil
}
