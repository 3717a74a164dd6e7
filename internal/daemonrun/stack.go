package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"captioner/internal/artifacts"
	"captioner/internal/asr"
	"captioner/internal/assetstore"
	"captioner/internal/config"
	"captioner/internal/media/ffmpeg"
	"captioner/internal/media/ffprobe"
	"captioner/internal/pipeline"
	"captioner/internal/runlog"
)

// eventBufferSize bounds the in-memory run event history.
const eventBufferSize = 1024

// Stack is a fully wired pipeline plus the resources backing it.
type Stack struct {
	Orchestrator *pipeline.Orchestrator
	Artifacts    *artifacts.Manager
	Journal      *runlog.Store
	Events       *pipeline.EventHub
	Registry     *prometheus.Registry

	closers []func() error
}

// StackOptions tweaks how Build wires collaborators.
type StackOptions struct {
	// HTTPClient is shared by the ASR engine and asset store. Nil uses a
	// client without an overall timeout; stage timeouts bound each call.
	HTTPClient *http.Client
	// Store overrides the configured asset store.
	Store assetstore.Store
	// SkipJournal leaves runs unrecorded.
	SkipJournal bool
}

// Build wires the orchestrator from cfg: ffmpeg, the optional ffprobe gate,
// the ASR engine, the asset store, the run journal, events, and metrics.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts StackOptions) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	stack := &Stack{
		Artifacts: artifacts.NewManager(cfg.Paths.WorkDir, logger),
		Events:    pipeline.NewEventHub(eventBufferSize),
		Registry:  prometheus.NewRegistry(),
	}
	stack.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := asr.NewFromConfig(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("asr engine: %w", err)
	}

	store := opts.Store
	if store == nil {
		configured, closeStore, err := assetstore.NewFromConfig(ctx, cfg, client)
		if err != nil {
			return nil, fmt.Errorf("asset store: %w", err)
		}
		store = configured
		stack.closers = append(stack.closers, closeStore)
	}

	deps := pipeline.Dependencies{
		Artifacts: stack.Artifacts,
		Media:     ffmpeg.New(cfg.FFmpegBinary(), ffmpeg.ExecRunner{}),
		Engine:    engine,
		Store:     store,
		Events:    stack.Events,
		Metrics:   pipeline.NewMetrics(stack.Registry),
		Logger:    logger,
	}
	if cfg.Pipeline.ProbeInput {
		binary := cfg.FFprobeBinary()
		deps.Prober = func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffmpeg.ExecRunner{}, binary, path)
		}
	}
	if !opts.SkipJournal {
		journal, err := runlog.Open(cfg.RunsDBPath())
		if err != nil {
			_ = stack.Close()
			return nil, fmt.Errorf("open run journal: %w", err)
		}
		stack.Journal = journal
		stack.closers = append(stack.closers, journal.Close)
		deps.Journal = journal
	}

	orchestrator, err := pipeline.New(deps, pipeline.OptionsFromConfig(cfg)...)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	stack.Orchestrator = orchestrator
	return stack, nil
}

// Close releases the journal and asset store.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
