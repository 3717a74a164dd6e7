package pipeline

import (
	"github.com/google/uuid"

	"captioner/internal/assetstore"
	"captioner/internal/config"
	"captioner/internal/media/wav"
)

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts sets per-stage deadlines.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithMaxConcurrentRuns bounds admitted runs. Excess runs fail immediately
// with services.ErrUnavailable. Zero means unbounded.
func WithMaxConcurrentRuns(n int) Option {
	return func(o *Orchestrator) { o.maxRuns = n }
}

// WithMaxUploadBytes caps the persisted upload size.
func WithMaxUploadBytes(n int64) Option {
	return func(o *Orchestrator) { o.maxUploadBytes = n }
}

// WithFolder sets the asset-store folder for rendered videos.
func WithFolder(folder string) Option {
	return func(o *Orchestrator) {
		if folder != "" {
			o.folder = folder
		}
	}
}

// WithAudioVerifier replaces the extracted-audio check.
func WithAudioVerifier(verify func(path string) error) Option {
	return func(o *Orchestrator) {
		if verify != nil {
			o.verifyAudio = verify
		}
	}
}

// WithIDGenerator replaces run ID generation.
func WithIDGenerator(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newID = next
		}
	}
}

// OptionsFromConfig translates configuration into orchestrator options.
func OptionsFromConfig(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	extract, transcribe, render, upload := cfg.StageTimeouts()
	return []Option{
		WithTimeouts(Timeouts{Extract: extract, Transcribe: transcribe, Render: render, Upload: upload}),
		WithMaxConcurrentRuns(cfg.Pipeline.MaxConcurrentRuns),
		WithMaxUploadBytes(cfg.MaxUploadBytes()),
		WithFolder(cfg.Storage.Folder),
	}
}

func defaultAudioVerifier(path string) error {
	_, err := wav.Verify(path)
	return err
}

func defaultFolder() string {
	return assetstore.DefaultFolder
}

func defaultID() string {
	return uuid.NewString()
}
