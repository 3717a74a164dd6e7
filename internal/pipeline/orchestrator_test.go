package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"captioner/internal/artifacts"
	"captioner/internal/asr"
	"captioner/internal/assetstore"
	"captioner/internal/fileutil"
	"captioner/internal/media/ffprobe"
	"captioner/internal/runlog"
	"captioner/internal/services"
)

type fakeMedia struct {
	extract func(ctx context.Context, input, output string) error
	burn    func(ctx context.Context, input, subtitles, output string) error

	mu          sync.Mutex
	extractRuns int
	burnRuns    int
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, input, output string) error {
	f.mu.Lock()
	f.extractRuns++
	f.mu.Unlock()
	if f.extract != nil {
		return f.extract(ctx, input, output)
	}
	return os.WriteFile(output, []byte("RIFF-audio"), 0o644)
}

func (f *fakeMedia) BurnSubtitles(ctx context.Context, input, subtitles, output string) error {
	f.mu.Lock()
	f.burnRuns++
	f.mu.Unlock()
	if f.burn != nil {
		return f.burn(ctx, input, subtitles, output)
	}
	return os.WriteFile(output, []byte("rendered"), 0o644)
}

type fakeStore struct {
	upload func(ctx context.Context, path string, opts assetstore.UploadOptions) (assetstore.Asset, error)

	mu    sync.Mutex
	calls []assetstore.UploadOptions
}

func (f *fakeStore) Upload(ctx context.Context, path string, opts assetstore.UploadOptions) (assetstore.Asset, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if f.upload != nil {
		return f.upload(ctx, path, opts)
	}
	return assetstore.Asset{URL: "https://cdn.example/" + opts.PublicID + ".mp4", PublicID: opts.PublicID}, nil
}

type recordingJournal struct {
	mu      sync.Mutex
	calls   []string
	stages  []string
	failed  map[string][]string
	cleanup map[string]int
}

func newRecordingJournal() *recordingJournal {
	return &recordingJournal{failed: map[string][]string{}, cleanup: map[string]int{}}
}

func (j *recordingJournal) record(call string) {
	j.mu.Lock()
	j.calls = append(j.calls, call)
	j.mu.Unlock()
}

func (j *recordingJournal) Begin(_ context.Context, id string, _ runlog.Source, _ string, _ string) error {
	j.record("begin")
	return nil
}

func (j *recordingJournal) SetStage(_ context.Context, _ string, stage string) error {
	j.mu.Lock()
	j.stages = append(j.stages, stage)
	j.mu.Unlock()
	return nil
}

func (j *recordingJournal) SetInputBytes(context.Context, string, int64) error {
	j.record("input")
	return nil
}

func (j *recordingJournal) Succeed(context.Context, string, string, int) error {
	j.record("succeed")
	return nil
}

func (j *recordingJournal) Fail(_ context.Context, id, stage, kind, _ string) error {
	j.mu.Lock()
	j.failed[id] = []string{stage, kind}
	j.mu.Unlock()
	j.record("fail")
	return nil
}

func (j *recordingJournal) RecordCleanup(_ context.Context, id string, failures int) error {
	j.mu.Lock()
	j.cleanup[id] = failures
	j.mu.Unlock()
	return nil
}

type harness struct {
	workDir string
	media   *fakeMedia
	store   *fakeStore
	journal *recordingJournal
	events  *EventHub
	engine  asr.Engine
	prober  Prober
	opts    []Option
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		workDir: t.TempDir(),
		media:   &fakeMedia{},
		store:   &fakeStore{},
		journal: newRecordingJournal(),
		events:  NewEventHub(64),
		engine: asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
			return asr.Transcript{Segments: []asr.Segment{{Start: 0, End: 2.5, Text: " Hello world "}}, Language: "en"}, nil
		}),
	}
}

func newHarnessManager(h *harness) *artifacts.Manager {
	return artifacts.NewManager(h.workDir, nil)
}

func (h *harness) build(t *testing.T) *Orchestrator {
	t.Helper()
	opts := append([]Option{WithAudioVerifier(func(string) error { return nil })}, h.opts...)
	orch, err := New(Dependencies{
		Artifacts: newHarnessManager(h),
		Media:     h.media,
		Engine:    h.engine,
		Store:     h.store,
		Prober:    h.prober,
		Journal:   h.journal,
		Events:    h.events,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return orch
}

func upload(name string) Upload {
	return Upload{Body: strings.NewReader("fake video bytes"), Filename: name}
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected no leftover artifacts, found %v", names)
	}
}

func workDirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Dependencies{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestRunSerializesSegmentsIntoRenderedSubtitles(t *testing.T) {
	h := newHarness(t)
	var srt []byte
	h.media.burn = func(_ context.Context, _ string, subtitles, output string) error {
		data, err := os.ReadFile(subtitles)
		if err != nil {
			return err
		}
		srt = data
		return os.WriteFile(output, []byte("rendered"), 0o644)
	}
	orch := h.build(t)

	result, err := orch.Run(context.Background(), upload("Talk Show.mov"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello world\n\n"
	if string(srt) != want {
		t.Fatalf("srt mismatch:\n got %q\nwant %q", srt, want)
	}
	if result.Segments != 1 || result.Language != "en" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.HasPrefix(result.VideoURL, "https://cdn.example/talk-show-") {
		t.Fatalf("unexpected url %q", result.VideoURL)
	}
	if result.RunID == "" || result.CleanupFailures != 0 {
		t.Fatalf("unexpected run bookkeeping: %+v", result)
	}
	if len(h.store.calls) != 1 {
		t.Fatalf("expected one upload, got %d", len(h.store.calls))
	}
	opts := h.store.calls[0]
	if opts.ResourceType != assetstore.ResourceVideo || opts.Folder != assetstore.DefaultFolder {
		t.Fatalf("unexpected upload options: %+v", opts)
	}
	assertWorkDirEmpty(t, h.workDir)

	if got := strings.Join(h.journal.calls, ","); got != "begin,input,succeed" {
		t.Fatalf("unexpected journal calls %q", got)
	}
	wantStages := []string{StageAudioExtraction, StageTranscription, StageSubtitleWrite, StageRender, StageUpload}
	if strings.Join(h.journal.stages, ",") != strings.Join(wantStages, ",") {
		t.Fatalf("unexpected stages %v", h.journal.stages)
	}
	events, _ := h.events.Tail(0)
	if len(events) == 0 || events[len(events)-1].State != StateSucceeded {
		t.Fatalf("expected final succeeded event, got %+v", events)
	}
}

func TestRunWithSilentVideoStillRendersAndUploads(t *testing.T) {
	h := newHarness(t)
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		return asr.Transcript{}, nil
	})
	var srtSize int64 = -1
	h.media.burn = func(_ context.Context, _ string, subtitles, output string) error {
		info, err := os.Stat(subtitles)
		if err != nil {
			return err
		}
		srtSize = info.Size()
		return os.WriteFile(output, []byte("rendered"), 0o644)
	}
	orch := h.build(t)

	result, err := orch.Run(context.Background(), upload("silent.mp4"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if srtSize != 0 {
		t.Fatalf("expected empty subtitle file, got %d bytes", srtSize)
	}
	if result.VideoURL == "" || result.Segments != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestExtractionFailureSkipsTranscription(t *testing.T) {
	h := newHarness(t)
	transcribed := false
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		transcribed = true
		return asr.Transcript{}, nil
	})
	var present []string
	h.media.extract = func(context.Context, string, string) error {
		present = workDirNames(t, h.workDir)
		return services.Wrap(services.ErrExternalTool, StageAudioExtraction, "extract audio", "ffmpeg exited with status 1", nil)
	}
	orch := h.build(t)

	result, err := orch.Run(context.Background(), upload("clip.mp4"))
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageAudioExtraction {
		t.Fatalf("expected audio-extraction failure, got %v", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if transcribed {
		t.Fatal("transcription must not run after extraction failure")
	}
	if len(present) != 1 || !strings.HasSuffix(present[0], "-input.mp4") {
		t.Fatalf("expected only the saved input before cleanup, got %v", present)
	}
	if result.RunID == "" {
		t.Fatal("failed run should still report its ID")
	}
	assertWorkDirEmpty(t, h.workDir)
	if got := h.journal.failed[result.RunID]; len(got) != 2 || got[0] != StageAudioExtraction || got[1] != "internal" {
		t.Fatalf("unexpected journal failure %v", got)
	}
}

func TestUploadFailureRemovesRenderedOutput(t *testing.T) {
	h := newHarness(t)
	outputExisted := false
	h.store.upload = func(_ context.Context, path string, _ assetstore.UploadOptions) (assetstore.Asset, error) {
		_, outputExisted = fileutil.NonEmptyFile(path)
		return assetstore.Asset{}, services.Wrap(services.ErrUpstream, StageUpload, "upload", "status 500", nil)
	}
	orch := h.build(t)

	_, err := orch.Run(context.Background(), upload("clip.mp4"))
	if FailedStage(err) != StageUpload {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if !outputExisted {
		t.Fatal("rendered output should exist when upload is attempted")
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestFailureAtEachStageLeavesNoArtifacts(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name   string
		stage  string
		mutate func(t *testing.T, h *harness)
		body   *strings.Reader
	}{
		{
			name:  "empty upload",
			stage: StageInput,
			body:  strings.NewReader(""),
		},
		{
			name:  "extraction",
			stage: StageAudioExtraction,
			mutate: func(t *testing.T, h *harness) {
				h.media.extract = func(_ context.Context, _, output string) error {
					_ = os.WriteFile(output, []byte("partial"), 0o644)
					return boom
				}
			},
		},
		{
			name:  "transcription",
			stage: StageTranscription,
			mutate: func(t *testing.T, h *harness) {
				h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
					return asr.Transcript{}, boom
				})
			},
		},
		{
			name:  "subtitle write",
			stage: StageSubtitleWrite,
			mutate: func(t *testing.T, h *harness) {
				h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
					return asr.Transcript{Segments: []asr.Segment{{Start: -1, End: 1, Text: "bad"}}}, nil
				})
			},
		},
		{
			name:  "subtitle file unwritable",
			stage: StageSubtitleWrite,
			mutate: func(t *testing.T, h *harness) {
				h.opts = append(h.opts, WithIDGenerator(func() string { return "blocked-run" }))
				if err := os.Mkdir(filepath.Join(h.workDir, "blocked-run-subtitles.srt"), 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
			},
		},
		{
			name:  "render",
			stage: StageRender,
			mutate: func(t *testing.T, h *harness) {
				h.media.burn = func(_ context.Context, _, _, output string) error {
					_ = os.WriteFile(output, []byte("partial"), 0o644)
					return boom
				}
			},
		},
		{
			name:  "upload",
			stage: StageUpload,
			mutate: func(t *testing.T, h *harness) {
				h.store.upload = func(context.Context, string, assetstore.UploadOptions) (assetstore.Asset, error) {
					return assetstore.Asset{}, boom
				}
			},
		},
		{
			name:  "upload without url",
			stage: StageUpload,
			mutate: func(t *testing.T, h *harness) {
				h.store.upload = func(context.Context, string, assetstore.UploadOptions) (assetstore.Asset, error) {
					return assetstore.Asset{}, nil
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.mutate != nil {
				tc.mutate(t, h)
			}
			orch := h.build(t)
			up := upload("clip.mp4")
			if tc.body != nil {
				up.Body = tc.body
			}
			_, err := orch.Run(context.Background(), up)
			if err == nil {
				t.Fatal("expected failure")
			}
			if got := FailedStage(err); got != tc.stage {
				t.Fatalf("stage = %q, want %q (err=%v)", got, tc.stage, err)
			}
			assertWorkDirEmpty(t, h.workDir)
		})
	}
}

func TestEmptyUploadIsClientError(t *testing.T) {
	h := newHarness(t)
	orch := h.build(t)
	_, err := orch.Run(context.Background(), Upload{Body: strings.NewReader(""), Filename: "x.mp4"})
	if !IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Kind() != services.KindClient {
		t.Fatalf("expected client kind, got %v", err)
	}
}

func TestUnreadableUploadBodyIsClientError(t *testing.T) {
	h := newHarness(t)
	orch := h.build(t)
	reset := errors.New("client connection reset")
	body := io.MultiReader(strings.NewReader("partial video"), iotest.ErrReader(reset))

	_, err := orch.Run(context.Background(), Upload{Body: body, Filename: "clip.mp4"})
	if FailedStage(err) != StageInput || !IsClientError(err) {
		t.Fatalf("expected client input failure, got stage=%q err=%v", FailedStage(err), err)
	}
	if !errors.Is(err, reset) {
		t.Fatalf("expected read cause preserved, got %v", err)
	}
	if h.media.extractRuns != 0 {
		t.Fatal("extraction must not run after an unreadable upload")
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestInputWriteFailureIsAudioExtractionFault(t *testing.T) {
	h := newHarness(t)
	h.workDir = filepath.Join(t.TempDir(), "missing")
	orch := h.build(t)

	_, err := orch.Run(context.Background(), upload("clip.mp4"))
	if got := FailedStage(err); got != StageAudioExtraction {
		t.Fatalf("stage = %q, want %q (err=%v)", got, StageAudioExtraction, err)
	}
	if IsClientError(err) || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected internal transient failure, got %v", err)
	}
	if h.media.extractRuns != 0 {
		t.Fatal("extraction must not run without a saved input")
	}
}

func TestMalformedSubtitlesFailBeforeRender(t *testing.T) {
	h := newHarness(t)
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		return asr.Transcript{Segments: []asr.Segment{{Start: 0, End: 1, Text: "first\n\nstray"}}}, nil
	})
	orch := h.build(t)

	_, err := orch.Run(context.Background(), upload("clip.mp4"))
	if got := FailedStage(err); got != StageSubtitleWrite {
		t.Fatalf("stage = %q, want %q (err=%v)", got, StageSubtitleWrite, err)
	}
	if IsClientError(err) {
		t.Fatalf("subtitle validation failure must be internal, got %v", err)
	}
	if h.media.burnRuns != 0 {
		t.Fatal("render must not run with malformed subtitles")
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestOversizedUploadIsRejected(t *testing.T) {
	h := newHarness(t)
	h.opts = append(h.opts, WithMaxUploadBytes(4))
	orch := h.build(t)
	_, err := orch.Run(context.Background(), upload("big.mp4"))
	if !IsClientError(err) || !errors.Is(err, fileutil.ErrTooLarge) {
		t.Fatalf("expected too-large client error, got %v", err)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestPanicInStageIsRecoveredAndCleanedUp(t *testing.T) {
	h := newHarness(t)
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		panic("engine exploded")
	})
	orch := h.build(t)

	result, err := orch.Run(context.Background(), upload("clip.mp4"))
	if FailedStage(err) != StageInternal {
		t.Fatalf("expected internal failure, got %v", err)
	}
	if IsClientError(err) {
		t.Fatal("panic must not be a client error")
	}
	if result.RunID == "" {
		t.Fatal("expected run id on panic result")
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestTranscriptionTimeout(t *testing.T) {
	h := newHarness(t)
	h.engine = asr.EngineFunc(func(ctx context.Context, _ string) (asr.Transcript, error) {
		<-ctx.Done()
		return asr.Transcript{}, ctx.Err()
	})
	h.opts = append(h.opts, WithTimeouts(Timeouts{Transcribe: 20 * time.Millisecond}))
	orch := h.build(t)

	_, err := orch.Run(context.Background(), upload("clip.mp4"))
	if FailedStage(err) != StageTranscription {
		t.Fatalf("expected transcription failure, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestConcurrentRunsNeverSharePaths(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	seen := map[string]bool{}
	h.engine = asr.EngineFunc(func(_ context.Context, audio string) (asr.Transcript, error) {
		mu.Lock()
		defer mu.Unlock()
		if seen[audio] {
			return asr.Transcript{}, errors.New("duplicate audio path " + audio)
		}
		seen[audio] = true
		return asr.Transcript{Segments: []asr.Segment{{Start: 0, End: 1, Text: filepath.Base(audio)}}}, nil
	})
	orch := h.build(t)

	const runs = 8
	var wg sync.WaitGroup
	errs := make(chan error, runs)
	ids := make(chan string, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := orch.Run(context.Background(), upload("clip.mp4"))
			errs <- err
			ids <- result.RunID
		}()
	}
	wg.Wait()
	close(errs)
	close(ids)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent run failed: %v", err)
		}
	}
	unique := map[string]bool{}
	for id := range ids {
		unique[id] = true
	}
	if len(unique) != runs || len(seen) != runs {
		t.Fatalf("expected %d distinct runs, got ids=%d audio=%d", runs, len(unique), len(seen))
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestAdmissionRejectsWhenSaturated(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		close(entered)
		<-release
		return asr.Transcript{}, nil
	})
	h.opts = append(h.opts, WithMaxConcurrentRuns(1))
	orch := h.build(t)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), upload("first.mp4"))
		done <- err
	}()
	<-entered

	_, err := orch.Run(context.Background(), upload("second.mp4"))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestProbeWithoutAudioProducesEmptyTranscript(t *testing.T) {
	h := newHarness(t)
	h.prober = func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
	}
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		t.Fatal("engine must not run without audio")
		return asr.Transcript{}, nil
	})
	orch := h.build(t)

	result, err := orch.Run(context.Background(), upload("mute.mp4"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Segments != 0 || result.VideoURL == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.media.extractRuns != 0 || h.media.burnRuns != 1 {
		t.Fatalf("unexpected media calls extract=%d burn=%d", h.media.extractRuns, h.media.burnRuns)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestProbeWithoutVideoIsUnsupportedMedia(t *testing.T) {
	h := newHarness(t)
	h.prober = func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio"}}}, nil
	}
	orch := h.build(t)

	_, err := orch.Run(context.Background(), upload("song.mp3"))
	if !IsClientError(err) || !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("expected unsupported media client error, got %v", err)
	}
	assertWorkDirEmpty(t, h.workDir)
}

func TestProbeFailureClassification(t *testing.T) {
	cases := []struct {
		name        string
		probeErr    error
		client      bool
		unsupported bool
	}{
		{
			name:     "ffprobe missing",
			probeErr: fmt.Errorf("ffprobe inspect: %w", exec.ErrNotFound),
		},
		{
			name:        "unreadable container",
			probeErr:    fmt.Errorf("ffprobe inspect: %w: exit status 1: moov atom not found", ffprobe.ErrUnreadable),
			client:      true,
			unsupported: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.prober = func(context.Context, string) (ffprobe.Result, error) {
				return ffprobe.Result{}, tc.probeErr
			}
			orch := h.build(t)

			_, err := orch.Run(context.Background(), upload("clip.mp4"))
			if FailedStage(err) != StageInput {
				t.Fatalf("stage = %q, want input (err=%v)", FailedStage(err), err)
			}
			if IsClientError(err) != tc.client {
				t.Fatalf("client = %v, want %v (err=%v)", IsClientError(err), tc.client, err)
			}
			if errors.Is(err, ErrUnsupportedMedia) != tc.unsupported {
				t.Fatalf("unsupported = %v, want %v (err=%v)", errors.Is(err, ErrUnsupportedMedia), tc.unsupported, err)
			}
			if !tc.client && !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected external tool failure, got %v", err)
			}
			assertWorkDirEmpty(t, h.workDir)
		})
	}
}

func TestKeepOutputCopiesRenderedVideo(t *testing.T) {
	h := newHarness(t)
	orch := h.build(t)
	dest := filepath.Join(t.TempDir(), "out", "kept.mp4")

	up := upload("clip.mp4")
	up.KeepOutput = dest
	result, err := orch.Run(context.Background(), up)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.KeptOutput != dest {
		t.Fatalf("kept output = %q, want %q", result.KeptOutput, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil || !bytes.Equal(data, []byte("rendered")) {
		t.Fatalf("kept copy missing or wrong: %q %v", data, err)
	}
	assertWorkDirEmpty(t, h.workDir)
}
