package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateASR(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateInbox(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"server.max_upload_mib":                  c.Server.MaxUploadMiB,
		"pipeline.max_concurrent_runs":           c.Pipeline.MaxConcurrentRuns,
		"pipeline.max_concurrent_transcriptions": c.Pipeline.MaxConcurrentTranscriptions,
		"pipeline.extract_timeout_seconds":       c.Pipeline.ExtractTimeoutSeconds,
		"pipeline.transcribe_timeout_seconds":    c.Pipeline.TranscribeTimeoutSeconds,
		"pipeline.render_timeout_seconds":        c.Pipeline.RenderTimeoutSeconds,
		"pipeline.upload_timeout_seconds":        c.Pipeline.UploadTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Pipeline.MaxConcurrentTranscriptions > c.Pipeline.MaxConcurrentRuns {
		return errors.New("pipeline.max_concurrent_transcriptions must not exceed pipeline.max_concurrent_runs")
	}
	if strings.ContainsAny(c.Pipeline.DefaultInputExtension, `/\`) {
		return errors.New("pipeline.default_input_extension must not contain path separators")
	}
	return nil
}

func (c *Config) validateASR() error {
	switch c.ASR.Engine {
	case "whisperx":
		if c.ASR.VADMethod != "silero" && c.ASR.VADMethod != "pyannote" {
			return fmt.Errorf("asr.vad_method must be silero or pyannote, got %q", c.ASR.VADMethod)
		}
		if c.ASR.VADMethod == "pyannote" && c.ASR.HFToken == "" {
			return errors.New("asr.hf_token must be set when asr.vad_method is pyannote (or set HF_TOKEN)")
		}
	case "openai":
		if c.ASR.OpenAIAPIKey == "" {
			return errors.New("asr.openai_api_key must be set when asr.engine is openai (or set OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("asr.engine must be whisperx or openai, got %q", c.ASR.Engine)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "cloudinary":
		if c.Storage.CloudinaryCloudName == "" || c.Storage.CloudinaryAPIKey == "" || c.Storage.CloudinaryAPISecret == "" {
			return errors.New("storage.cloudinary_cloud_name, cloudinary_api_key and cloudinary_api_secret must be set (or set CLOUDINARY_URL)")
		}
	case "blob":
		if c.Storage.BlobURL == "" {
			return errors.New("storage.blob_url must be set when storage.backend is blob")
		}
		if c.Storage.PublicBaseURL == "" {
			return errors.New("storage.public_base_url must be set when storage.backend is blob")
		}
	default:
		return fmt.Errorf("storage.backend must be cloudinary or blob, got %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateInbox() error {
	if !c.Inbox.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Inbox.Dir) == "" {
		return errors.New("inbox.dir must be set when inbox.enabled is true")
	}
	if rel, err := filepath.Rel(c.Inbox.Dir, c.Paths.WorkDir); err == nil && !strings.HasPrefix(rel, "..") {
		return errors.New("paths.work_dir must not live inside inbox.dir")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
