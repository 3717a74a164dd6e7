package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"captioner/internal/deps"
	"captioner/internal/runlog"
)

func TestFromRunFormatsTimesAndDuration(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := created.Add(90 * time.Second)
	dto := FromRun(runlog.Run{
		ID:         "abc",
		Source:     runlog.SourceAPI,
		Status:     runlog.StatusSucceeded,
		Stage:      "succeeded",
		VideoURL:   "https://cdn.example/v.mp4",
		Segments:   4,
		CreatedAt:  created,
		UpdatedAt:  finished,
		FinishedAt: &finished,
	})
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected created_at %q", dto.CreatedAt)
	}
	if dto.DurationSeconds != 90 {
		t.Fatalf("duration = %v, want 90", dto.DurationSeconds)
	}
	if dto.Source != "api" || dto.Status != "succeeded" {
		t.Fatalf("unexpected enums %+v", dto)
	}
}

func TestFromRunOmitsUnfinished(t *testing.T) {
	dto := FromRun(runlog.Run{ID: "x", Status: runlog.StatusRunning})
	if dto.FinishedAt != "" || dto.DurationSeconds != 0 {
		t.Fatalf("running run should have no finish data: %+v", dto)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "finished_at") {
		t.Fatalf("finished_at should be omitted: %s", data)
	}
}

func TestSubtitleResponseShape(t *testing.T) {
	segments := 0
	data, err := json.Marshal(SubtitleResponse{Success: true, VideoURL: "u", RunID: "r", Segments: &segments})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"success":true,"video_url":"u","run_id":"r","segments":0}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}

	data, err = json.Marshal(SubtitleResponse{Error: FailureMessage, Stage: "render", Kind: "internal", RunID: "r"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want = `{"success":false,"run_id":"r","error":"subtitle generation failed","stage":"render","kind":"internal"}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestFromDependencies(t *testing.T) {
	out := FromDependencies([]deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}})
	if len(out) != 1 || !out[0].Available || out[0].Command != "ffmpeg" {
		t.Fatalf("unexpected conversion %+v", out)
	}
}
