package subtitles_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/asr"
	"captioner/internal/services"
	"captioner/internal/subtitles"
)

func TestSerializeEmptyTranscript(t *testing.T) {
	data, err := subtitles.Serialize(nil)
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty output, got %q", data)
	}
}

func TestSerializeSingleSegment(t *testing.T) {
	data, err := subtitles.Serialize([]asr.Segment{{Start: 0.0, End: 2.5, Text: "Hello world"}})
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello world\n\n"
	if string(data) != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", data, want)
	}
}

func TestSerializeTrimsTextAndRenumbers(t *testing.T) {
	segments := []asr.Segment{
		{ID: 7, Start: 3661.25, End: 3662.0, Text: "  Hi  "},
		{ID: 3, Start: 3662.0, End: 3663.5, Text: "\tthere\n"},
	}
	data, err := subtitles.Serialize(segments)
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	want := "1\n01:01:01,250 --> 01:01:02,000\nHi\n\n2\n01:01:02,000 --> 01:01:03,500\nthere\n\n"
	if string(data) != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", data, want)
	}
}

func TestSerializeKeepsInvertedTimestamps(t *testing.T) {
	data, err := subtitles.Serialize([]asr.Segment{{Start: 5, End: 4, Text: "backwards"}})
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	if !strings.Contains(string(data), "00:00:05,000 --> 00:00:04,000") {
		t.Fatalf("expected timestamps passed through, got %q", data)
	}
}

func TestSerializeRejectsInvalidTimes(t *testing.T) {
	for _, seg := range []asr.Segment{
		{Start: -1, End: 1, Text: "neg"},
		{Start: 0, End: math.NaN(), Text: "nan"},
	} {
		_, err := subtitles.Serialize([]asr.Segment{{Start: 0, End: 1, Text: "ok"}, seg})
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", seg, err)
		}
		if !strings.Contains(err.Error(), "segment 2") {
			t.Fatalf("expected segment position in error, got %v", err)
		}
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	segments := []asr.Segment{
		{Start: 0, End: 1.999, Text: "first"},
		{Start: 2.0004, End: 4.25, Text: " second line "},
		{Start: 4.25, End: 7261.5, Text: "third"},
	}
	data, err := subtitles.Serialize(segments)
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	cues, err := subtitles.Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != len(segments) {
		t.Fatalf("expected %d cues, got %d", len(segments), len(cues))
	}
	for i, cue := range cues {
		if cue.Index != i+1 {
			t.Fatalf("cue %d has index %d", i, cue.Index)
		}
		if cue.Text != strings.TrimSpace(segments[i].Text) {
			t.Fatalf("cue %d text %q", i, cue.Text)
		}
		wantStart := math.Floor(segments[i].Start*1000+1e-6) / 1000
		wantEnd := math.Floor(segments[i].End*1000+1e-6) / 1000
		if math.Abs(cue.Start-wantStart) > 1e-9 || math.Abs(cue.End-wantEnd) > 1e-9 {
			t.Fatalf("cue %d times %v-%v, want %v-%v", i, cue.Start, cue.End, wantStart, wantEnd)
		}
	}
}

func TestParseToleratesCRLFAndMultilineText(t *testing.T) {
	input := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nline one\r\nline two\r\n\r\n2\r\n00:00:03.500 --> 00:00:04,000\r\nnext\r\n"
	cues, err := subtitles.Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].Text != "line one\nline two" {
		t.Fatalf("unexpected multiline text %q", cues[0].Text)
	}
	if cues[1].Start != 3.5 {
		t.Fatalf("unexpected start %v", cues[1].Start)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := subtitles.Parse([]byte("not an srt\n")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := subtitles.Parse([]byte("1\nbogus timing\ntext\n")); err == nil {
		t.Fatal("expected timing error")
	}
}

func TestWriteFileAndValidateContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-subtitles.srt")
	data, err := subtitles.Serialize([]asr.Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}})
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	if err := subtitles.WriteFile(path, data); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if issues := subtitles.ValidateContent(path); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}

	empty := filepath.Join(dir, "empty.srt")
	if err := subtitles.WriteFile(empty, nil); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if issues := subtitles.ValidateContent(empty); len(issues) != 0 {
		t.Fatalf("expected empty file to validate, got %v", issues)
	}

	misnumbered := filepath.Join(dir, "bad.srt")
	if err := os.WriteFile(misnumbered, []byte("2\n00:00:00,000 --> 00:00:01,000\nx\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	issues := subtitles.ValidateContent(misnumbered)
	if len(issues) != 1 || !strings.HasPrefix(issues[0], "cue_numbering") {
		t.Fatalf("expected numbering issue, got %v", issues)
	}

	if issues := subtitles.ValidateContent(filepath.Join(dir, "missing.srt")); len(issues) != 1 {
		t.Fatalf("expected read error, got %v", issues)
	}
}

func TestWriteFileDiskFailureIsTransient(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "run-subtitles.srt")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := subtitles.WriteFile(blocked, []byte("1\n00:00:00,000 --> 00:00:01,000\nx\n\n"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("disk failure must not be reported as configuration: %v", err)
	}
}
