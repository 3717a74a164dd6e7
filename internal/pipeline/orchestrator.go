package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"captioner/internal/artifacts"
	"captioner/internal/asr"
	"captioner/internal/assetstore"
	"captioner/internal/fileutil"
	"captioner/internal/logging"
	"captioner/internal/media/ffprobe"
	"captioner/internal/runlog"
	"captioner/internal/services"
	"captioner/internal/subtitles"
)

// Orchestrator runs uploads through extraction, transcription, subtitle
// synthesis, rendering, and upload. It is safe for concurrent use.
type Orchestrator struct {
	artifacts *artifacts.Manager
	media     MediaTool
	engine    asr.Engine
	store     assetstore.Store
	prober    Prober
	journal   Journal
	events    *EventHub
	metrics   *Metrics
	logger    *slog.Logger

	timeouts       Timeouts
	maxRuns        int
	maxUploadBytes int64
	folder         string
	verifyAudio    func(path string) error
	newID          func() string

	admission *semaphore.Weighted
}

// New constructs an Orchestrator.
func New(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Artifacts == nil:
		return nil, errors.New("pipeline: artifact manager is required")
	case deps.Media == nil:
		return nil, errors.New("pipeline: media tool is required")
	case deps.Engine == nil:
		return nil, errors.New("pipeline: asr engine is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: asset store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		artifacts:   deps.Artifacts,
		media:       deps.Media,
		engine:      deps.Engine,
		store:       deps.Store,
		prober:      deps.Prober,
		journal:     deps.Journal,
		events:      deps.Events,
		metrics:     deps.Metrics,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		folder:      defaultFolder(),
		verifyAudio: defaultAudioVerifier,
		newID:       defaultID,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxRuns > 0 {
		o.admission = semaphore.NewWeighted(int64(o.maxRuns))
	}
	return o, nil
}

// Events exposes the progress hub, which may be nil.
func (o *Orchestrator) Events() *EventHub {
	return o.events
}

// Run executes one upload end to end. The returned error is a *StageError
// naming the first failing stage. Every artifact the run allocated is
// released before Run returns, on success, failure, or panic.
func (o *Orchestrator) Run(ctx context.Context, upload Upload) (result Result, err error) {
	if o.admission != nil {
		if !o.admission.TryAcquire(1) {
			o.metrics.runRejected()
			return Result{}, stageFailure(StageInput, services.Wrap(services.ErrUnavailable, StageInput, "admit run",
				fmt.Sprintf("%d runs already in progress", o.maxRuns), nil))
		}
		defer o.admission.Release(1)
	}

	runID := o.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)
	start := time.Now()
	source := upload.Source
	if source == "" {
		source = runlog.SourceAPI
	}

	set, allocErr := o.artifacts.Allocate(runID, filepath.Ext(upload.Filename))
	if allocErr != nil {
		return Result{RunID: runID}, stageFailure(StageInternal, allocErr)
	}

	o.metrics.runStarted()
	o.journalDo(ctx, "begin", func(jctx context.Context) error {
		return o.journal.Begin(jctx, runID, source, upload.Filename, StageInput)
	})
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("filename", upload.Filename),
		logging.String("source", string(source)),
	)

	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(logger, "run panicked", "run_panic",
				logging.String("panic", fmt.Sprint(rec)),
				logging.String("stack", string(debug.Stack())),
			)
			result = Result{RunID: runID}
			err = stageFailure(StageInternal, services.Wrap(services.ErrTransient, StageInternal, "run",
				fmt.Sprintf("panic: %v", rec), nil))
		}
		report := o.artifacts.Release(set)
		result.CleanupFailures = len(report.Failures)
		result.Duration = time.Since(start)
		o.finish(ctx, logger, upload.Filename, result, err, report)
	}()

	result, err = o.execute(ctx, logger, set, upload)
	result.RunID = runID
	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, set artifacts.Set, upload Upload) (Result, error) {
	runID := set.RunID
	o.enter(ctx, StateReceived, StageInput, upload.Filename)

	if err := o.persistUpload(ctx, set, upload); err != nil {
		return Result{}, err
	}

	hasAudio, err := o.inspect(ctx, logger, set)
	if err != nil {
		return Result{}, err
	}

	var transcript asr.Transcript
	if hasAudio {
		o.enter(ctx, StateReceived, StageAudioExtraction, "")
		if err := o.extract(ctx, set); err != nil {
			return Result{}, err
		}
		o.enter(ctx, StateAudioExtracted, StageTranscription, "")
		transcript, err = o.transcribe(ctx, set)
		if err != nil {
			return Result{}, err
		}
	} else {
		logger.Info("upload has no audio stream; continuing with empty transcript",
			logging.String(logging.FieldEventType, "audio_absent"),
		)
	}

	o.enter(ctx, StateTranscribed, StageSubtitleWrite, "")
	if err := o.writeSubtitles(ctx, set, transcript); err != nil {
		return Result{}, err
	}

	o.enter(ctx, StateSubtitlesWritten, StageRender, "")
	if err := o.render(ctx, set); err != nil {
		return Result{}, err
	}

	kept := o.keepOutput(ctx, logger, set, upload.KeepOutput)

	o.enter(ctx, StateVideoRendered, StageUpload, "")
	asset, err := o.upload(ctx, set, upload.Filename)
	if err != nil {
		return Result{KeptOutput: kept}, err
	}
	o.publish(Event{RunID: runID, State: StateUploaded, Stage: StageUpload, VideoURL: asset.URL})

	return Result{
		VideoURL:   asset.URL,
		PublicID:   asset.PublicID,
		Segments:   len(transcript.Segments),
		Language:   transcript.Language,
		KeptOutput: kept,
	}, nil
}

func (o *Orchestrator) persistUpload(ctx context.Context, set artifacts.Set, upload Upload) error {
	if upload.Body == nil {
		return stageFailure(StageInput, services.Wrap(services.ErrValidation, StageInput, "persist upload", "no file provided", nil))
	}
	started := time.Now()
	written, err := fileutil.WriteExclusive(set.Input, upload.Body, o.maxUploadBytes)
	o.metrics.observeStage(StageInput, time.Since(started))
	switch {
	case errors.Is(err, fileutil.ErrTooLarge):
		return stageFailure(StageInput, services.Wrap(services.ErrValidation, StageInput, "persist upload", "upload too large", err))
	case fileutil.IsReadError(err):
		return stageFailure(StageInput, services.Wrap(services.ErrValidation, StageInput, "persist upload", "unreadable upload", err))
	case err != nil:
		// Disk failures saving the input count against audio extraction.
		return stageFailure(StageAudioExtraction, services.WrapContext(ctx, services.ErrTransient, StageAudioExtraction, "persist upload", "write input", err))
	}
	if written == 0 {
		return stageFailure(StageInput, services.Wrap(services.ErrValidation, StageInput, "persist upload", "empty upload", nil))
	}
	o.journalDo(ctx, "input size", func(jctx context.Context) error {
		return o.journal.SetInputBytes(jctx, set.RunID, written)
	})
	return nil
}

// inspect probes the upload when a Prober is configured. It reports whether
// the container carries audio.
func (o *Orchestrator) inspect(ctx context.Context, logger *slog.Logger, set artifacts.Set) (bool, error) {
	if o.prober == nil {
		return true, nil
	}
	probeCtx, cancel := withTimeout(ctx, o.timeouts.Extract)
	defer cancel()
	info, err := o.prober(probeCtx, set.Input)
	if err != nil {
		if probeCtx.Err() != nil || !errors.Is(err, ffprobe.ErrUnreadable) {
			return false, stageFailure(StageInput, services.WrapContext(probeCtx, services.ErrExternalTool, StageInput, "inspect upload", "ffprobe", err))
		}
		return false, stageFailure(StageInput, services.Wrap(services.ErrValidation, StageInput, "inspect upload",
			"unreadable media container", fmt.Errorf("%w: %w", ErrUnsupportedMedia, err)))
	}
	if !info.HasVideo() {
		return false, stageFailure(StageInput, services.Wrap(services.ErrValidation, StageInput, "inspect upload",
			"no video stream", ErrUnsupportedMedia))
	}
	logger.Debug("upload inspected",
		logging.Int("video_streams", info.VideoStreamCount()),
		logging.Int("audio_streams", info.AudioStreamCount()),
		logging.Float64("duration_seconds", info.DurationSeconds()),
	)
	return info.HasAudio(), nil
}

func (o *Orchestrator) extract(ctx context.Context, set artifacts.Set) error {
	stageCtx, cancel := withTimeout(ctx, o.timeouts.Extract)
	defer cancel()
	started := time.Now()
	err := o.media.ExtractAudio(stageCtx, set.Input, set.Audio)
	if err == nil {
		err = o.verifyAudio(set.Audio)
	}
	o.metrics.observeStage(StageAudioExtraction, time.Since(started))
	if err != nil {
		return stageFailure(StageAudioExtraction, timeoutAware(stageCtx, StageAudioExtraction, "extract audio", err))
	}
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, set artifacts.Set) (asr.Transcript, error) {
	stageCtx, cancel := withTimeout(ctx, o.timeouts.Transcribe)
	defer cancel()
	started := time.Now()
	transcript, err := o.engine.Transcribe(stageCtx, set.Audio)
	o.metrics.observeStage(StageTranscription, time.Since(started))
	if err != nil {
		return asr.Transcript{}, stageFailure(StageTranscription, timeoutAware(stageCtx, StageTranscription, "transcribe", err))
	}
	return transcript, nil
}

func (o *Orchestrator) writeSubtitles(ctx context.Context, set artifacts.Set, transcript asr.Transcript) error {
	started := time.Now()
	defer func() { o.metrics.observeStage(StageSubtitleWrite, time.Since(started)) }()
	data, err := subtitles.Serialize(transcript.Segments)
	if err != nil {
		return stageFailure(StageSubtitleWrite, err)
	}
	if err := subtitles.WriteFile(set.Subtitles, data); err != nil {
		return stageFailure(StageSubtitleWrite, err)
	}
	if issues := subtitles.ValidateContent(set.Subtitles); len(issues) > 0 {
		return stageFailure(StageSubtitleWrite, services.Wrap(services.ErrValidation, StageSubtitleWrite, "validate subtitles",
			strings.Join(issues, "; "), nil))
	}
	logging.WithContext(ctx, o.logger).Debug("subtitles written",
		logging.Int("segments", len(transcript.Segments)),
		logging.Int("bytes", len(data)),
	)
	return nil
}

func (o *Orchestrator) render(ctx context.Context, set artifacts.Set) error {
	stageCtx, cancel := withTimeout(ctx, o.timeouts.Render)
	defer cancel()
	started := time.Now()
	err := o.media.BurnSubtitles(stageCtx, set.Input, set.Subtitles, set.Output)
	o.metrics.observeStage(StageRender, time.Since(started))
	if err != nil {
		return stageFailure(StageRender, timeoutAware(stageCtx, StageRender, "burn subtitles", err))
	}
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, set artifacts.Set, filename string) (assetstore.Asset, error) {
	stageCtx, cancel := withTimeout(ctx, o.timeouts.Upload)
	defer cancel()
	started := time.Now()
	asset, err := o.store.Upload(stageCtx, set.Output, assetstore.UploadOptions{
		ResourceType: assetstore.ResourceVideo,
		Folder:       o.folder,
		PublicID:     assetstore.PublicID(filename, set.RunID),
	})
	o.metrics.observeStage(StageUpload, time.Since(started))
	if err != nil {
		return assetstore.Asset{}, stageFailure(StageUpload, timeoutAware(stageCtx, StageUpload, "upload video", err))
	}
	if strings.TrimSpace(asset.URL) == "" {
		return assetstore.Asset{}, stageFailure(StageUpload, services.Wrap(services.ErrUpstream, StageUpload, "upload video", "asset store returned no URL", nil))
	}
	return asset, nil
}

// keepOutput copies the rendered video to dest. A failed copy is logged and
// does not fail the run.
func (o *Orchestrator) keepOutput(ctx context.Context, logger *slog.Logger, set artifacts.Set, dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return ""
	}
	if err := fileutil.CopyFile(set.Output, dest); err != nil {
		logging.WarnWithContext(logger, "could not keep rendered video", "keep_output_failed",
			logging.String("destination", dest),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the destination directory is writable"),
			logging.String(logging.FieldImpact, "the rendered video is only available through the asset store"),
		)
		return ""
	}
	logger.Info("rendered video kept", logging.String("destination", dest))
	return dest
}

func (o *Orchestrator) enter(ctx context.Context, state State, stage, filename string) {
	runID, _ := services.RunIDFromContext(ctx)
	o.publish(Event{RunID: runID, State: state, Stage: stage, Filename: filename})
	if stage == StageInput {
		return
	}
	o.journalDo(ctx, "stage", func(jctx context.Context) error {
		return o.journal.SetStage(jctx, runID, stage)
	})
	logging.WithContext(services.WithStage(ctx, stage), o.logger).Debug("stage started")
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, filename string, result Result, runErr error, report artifacts.ReleaseReport) {
	runID := result.RunID
	stage := ""
	if runErr != nil {
		stage = FailedStage(runErr)
	}
	o.metrics.runFinished(stage, runErr, result.Duration, len(report.Failures))

	if runErr != nil {
		kind := services.KindInternal
		if IsClientError(runErr) {
			kind = services.KindClient
		}
		o.journalDo(ctx, "fail", func(jctx context.Context) error {
			return o.journal.Fail(jctx, runID, stage, string(kind), runErr.Error())
		})
		o.publish(Event{RunID: runID, State: StateFailed, Stage: stage, Filename: filename, Error: runErr.Error()})
		failLogger := logging.WithContext(services.WithStage(ctx, stage), o.logger)
		failLogger.Error("run failed",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.String("failure_kind", string(kind)),
			logging.Duration("duration", result.Duration),
			logging.Error(runErr),
		)
	} else {
		o.journalDo(ctx, "succeed", func(jctx context.Context) error {
			return o.journal.Succeed(jctx, runID, result.VideoURL, result.Segments)
		})
		o.publish(Event{RunID: runID, State: StateSucceeded, Filename: filename, VideoURL: result.VideoURL})
		logger.Info("run succeeded",
			logging.String(logging.FieldEventType, "run_succeeded"),
			logging.String("video_url", result.VideoURL),
			logging.Int("segments", result.Segments),
			logging.Duration("duration", result.Duration),
		)
	}

	if len(report.Failures) > 0 {
		o.journalDo(ctx, "cleanup", func(jctx context.Context) error {
			return o.journal.RecordCleanup(jctx, runID, len(report.Failures))
		})
	}
}

func (o *Orchestrator) publish(evt Event) {
	o.events.Publish(evt)
}

// journalDo runs fn against the journal, detached from request
// cancellation. Failures are logged and never affect the run outcome.
func (o *Orchestrator) journalDo(ctx context.Context, op string, fn func(context.Context) error) {
	if o.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := fn(jctx); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "run journal update failed", "journal_write_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory and database file"),
			logging.String(logging.FieldImpact, "run history may be incomplete"),
		)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timeoutAware tags err with services.ErrTimeout when the stage deadline
// expired and the collaborator did not already classify it.
func timeoutAware(ctx context.Context, stage, operation string, err error) error {
	if errors.Is(err, services.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, operation, "stage deadline exceeded", err)
	}
	return err
}
