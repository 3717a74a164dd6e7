package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Server contains HTTP front door settings.
type Server struct {
	Bind         string `toml:"bind"`
	APIToken     string `toml:"api_token"`
	MaxUploadMiB int    `toml:"max_upload_mib"`
}

// Pipeline contains concurrency limits and per-stage timeouts for subtitle runs.
type Pipeline struct {
	MaxConcurrentRuns           int    `toml:"max_concurrent_runs"`
	MaxConcurrentTranscriptions int    `toml:"max_concurrent_transcriptions"`
	ProbeInput                  bool   `toml:"probe_input"`
	DefaultInputExtension       string `toml:"default_input_extension"`
	ExtractTimeoutSeconds       int    `toml:"extract_timeout_seconds"`
	TranscribeTimeoutSeconds    int    `toml:"transcribe_timeout_seconds"`
	RenderTimeoutSeconds        int    `toml:"render_timeout_seconds"`
	UploadTimeoutSeconds        int    `toml:"upload_timeout_seconds"`
}

// ASR selects and configures the speech recognition engine.
type ASR struct {
	Engine        string `toml:"engine"`
	Model         string `toml:"model"`
	Language      string `toml:"language"`
	CUDAEnabled   bool   `toml:"cuda_enabled"`
	VADMethod     string `toml:"vad_method"`
	HFToken       string `toml:"hf_token"`
	OpenAIAPIKey  string `toml:"openai_api_key"`
	OpenAIBaseURL string `toml:"openai_base_url"`
}

// FFmpeg names the media tool binaries.
type FFmpeg struct {
	Binary        string `toml:"binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Storage configures where rendered videos are published.
type Storage struct {
	Backend             string `toml:"backend"`
	Folder              string `toml:"folder"`
	CloudinaryCloudName string `toml:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `toml:"cloudinary_api_key"`
	CloudinaryAPISecret string `toml:"cloudinary_api_secret"`
	CloudinaryBaseURL   string `toml:"cloudinary_base_url"`
	BlobURL             string `toml:"blob_url"`
	PublicBaseURL       string `toml:"public_base_url"`
}

// Inbox configures the optional watch-folder intake.
type Inbox struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for captioner.
//
// Configuration sections by subsystem:
//   - Paths: scratch, state, and log directories
//   - Server: HTTP bind address, auth token, upload limit
//   - Pipeline: admission limits and per-stage timeouts
//   - ASR: speech recognition engine selection
//   - FFmpeg: media tool binaries
//   - Storage: asset store backend and credentials
//   - Inbox: watch-folder intake
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Server   Server   `toml:"server"`
	Pipeline Pipeline `toml:"pipeline"`
	ASR      ASR      `toml:"asr"`
	FFmpeg   FFmpeg   `toml:"ffmpeg"`
	Storage  Storage  `toml:"storage"`
	Inbox    Inbox    `toml:"inbox"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/captioner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captioner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Inbox.Enabled {
		if err := os.MkdirAll(c.Inbox.Dir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %q: %w", c.Inbox.Dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.FFmpeg.Binary) == "" {
		return defaultFFmpegBinary
	}
	return c.FFmpeg.Binary
}

// FFprobeBinary returns the ffprobe executable name used for input inspection.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.FFmpeg.FFprobeBinary
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMiB) << 20
}

// RunsDBPath returns the run journal location.
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "captioner.lock")
}

// StageTimeouts converts the configured per-stage seconds into durations.
func (c *Config) StageTimeouts() (extract, transcribe, render, upload time.Duration) {
	seconds := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return seconds(c.Pipeline.ExtractTimeoutSeconds),
		seconds(c.Pipeline.TranscribeTimeoutSeconds),
		seconds(c.Pipeline.RenderTimeoutSeconds),
		seconds(c.Pipeline.UploadTimeoutSeconds)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
