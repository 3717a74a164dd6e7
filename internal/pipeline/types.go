package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"captioner/internal/artifacts"
	"captioner/internal/asr"
	"captioner/internal/assetstore"
	"captioner/internal/media/ffprobe"
	"captioner/internal/runlog"
)

// Stage names used in failures, logs, and the run journal.
const (
	StageInput           = "input"
	StageAudioExtraction = "audio-extraction"
	StageTranscription   = "transcription"
	StageSubtitleWrite   = "subtitle-write"
	StageRender          = "render"
	StageUpload          = "upload"
	StageInternal        = "internal"
)

// State is a run lifecycle state.
type State string

const (
	StateReceived         State = "received"
	StateAudioExtracted   State = "audio_extracted"
	StateTranscribed      State = "transcribed"
	StateSubtitlesWritten State = "subtitles_written"
	StateVideoRendered    State = "video_rendered"
	StateUploaded         State = "uploaded"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Upload is one video submitted for captioning. Body is read exactly once.
type Upload struct {
	Body     io.Reader
	Filename string
	Source   runlog.Source
	// KeepOutput, when set, receives a copy of the rendered video before
	// the run's artifacts are released.
	KeepOutput string
}

// Result describes a successful run.
type Result struct {
	RunID           string
	VideoURL        string
	PublicID        string
	Segments        int
	Language        string
	KeptOutput      string
	Duration        time.Duration
	CleanupFailures int
}

// MediaTool performs the two ffmpeg operations a run needs.
type MediaTool interface {
	ExtractAudio(ctx context.Context, input, output string) error
	BurnSubtitles(ctx context.Context, input, subtitles, output string) error
}

// Prober inspects an uploaded container before extraction.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// Journal records run progress. *runlog.Store satisfies it.
type Journal interface {
	Begin(ctx context.Context, id string, source runlog.Source, filename string, stage string) error
	SetStage(ctx context.Context, id, stage string) error
	SetInputBytes(ctx context.Context, id string, size int64) error
	Succeed(ctx context.Context, id, videoURL string, segments int) error
	Fail(ctx context.Context, id, stage, kind, message string) error
	RecordCleanup(ctx context.Context, id string, failures int) error
}

// Dependencies are the collaborators an Orchestrator drives. Artifacts,
// Media, Engine, and Store are required; the rest are optional.
type Dependencies struct {
	Artifacts *artifacts.Manager
	Media     MediaTool
	Engine    asr.Engine
	Store     assetstore.Store
	Prober    Prober
	Journal   Journal
	Events    *EventHub
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Timeouts bound each external stage. Zero disables the bound.
type Timeouts struct {
	Extract    time.Duration
	Transcribe time.Duration
	Render     time.Duration
	Upload     time.Duration
}
