package asr

import (
	"fmt"
	"net/http"

	"captioner/internal/config"
	"captioner/internal/services"
)

// NewFromConfig builds the configured engine wrapped in a Limiter.
func NewFromConfig(cfg *config.Config, client *http.Client) (*Limiter, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "engine", "config required", nil)
	}
	var engine Engine
	switch cfg.ASR.Engine {
	case "whisperx", "":
		engine = NewWhisperX(WhisperXConfig{
			Model:       cfg.ASR.Model,
			Language:    cfg.ASR.Language,
			CUDAEnabled: cfg.ASR.CUDAEnabled,
			VADMethod:   cfg.ASR.VADMethod,
			HFToken:     cfg.ASR.HFToken,
		})
	case "openai":
		model := cfg.ASR.Model
		if model == "" || model == DefaultModel {
			model = DefaultOpenAIModel
		}
		engine = NewOpenAI(OpenAIConfig{
			APIKey:   cfg.ASR.OpenAIAPIKey,
			BaseURL:  cfg.ASR.OpenAIBaseURL,
			Model:    model,
			Language: cfg.ASR.Language,
		}, client)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "engine", fmt.Sprintf("unknown engine %q", cfg.ASR.Engine), nil)
	}
	return NewLimiter(engine, cfg.Pipeline.MaxConcurrentTranscriptions), nil
}
