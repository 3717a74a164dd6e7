package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"captioner/internal/services"
)

// WhisperX invocation constants.
const (
	UVXCommand        = "uvx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	CUDADevice        = "cuda"
	CPUDevice         = "cpu"
	CPUComputeType    = "float32"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"
	DefaultModel      = "base"
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// WhisperXConfig captures runtime settings for WhisperX transcription.
type WhisperXConfig struct {
	Model       string
	Language    string
	CUDAEnabled bool
	VADMethod   string
	HFToken     string
}

// WhisperX runs the whisperx CLI through uvx and reads its JSON output.
type WhisperX struct {
	cfg    WhisperXConfig
	runner CommandRunner
}

// WhisperXOption customizes a WhisperX engine.
type WhisperXOption func(*WhisperX)

// WithCommandRunner overrides subprocess execution (used in tests).
func WithCommandRunner(runner CommandRunner) WhisperXOption {
	return func(w *WhisperX) {
		if runner != nil {
			w.runner = runner
		}
	}
}

// NewWhisperX constructs a WhisperX engine.
func NewWhisperX(cfg WhisperXConfig, opts ...WhisperXOption) *WhisperX {
	w := &WhisperX{cfg: cfg, runner: defaultCommandRunner}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Model returns the configured model name for logging.
func (w *WhisperX) Model() string {
	if strings.TrimSpace(w.cfg.Model) != "" {
		return w.cfg.Model
	}
	return DefaultModel
}

// Transcribe runs WhisperX against audioPath. Output is written to a private
// directory beside the audio file and removed before returning.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Transcript{}, services.Wrap(services.ErrValidation, "transcription", "whisperx", "audio path required", nil)
	}
	outputDir, err := os.MkdirTemp(filepath.Dir(audioPath), "."+strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+"-whisperx-")
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrConfiguration, "transcription", "whisperx", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	args := w.buildArgs(audioPath, outputDir)
	if output, err := w.runner(ctx, UVXCommand, args...); err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return Transcript{}, services.WrapContext(ctx, services.ErrExternalTool, "transcription", "whisperx", detail, err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	transcript, err := LoadWhisperXJSON(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "read output", err)
	}
	if transcript.Language == "" {
		transcript.Language = w.cfg.Language
	}
	return transcript, nil
}

func (w *WhisperX) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)
	if w.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", w.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
	)

	vadMethod := strings.TrimSpace(w.cfg.VADMethod)
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && w.cfg.HFToken != "" {
		args = append(args, "--hf_token", w.cfg.HFToken)
	}
	if lang := strings.TrimSpace(w.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if w.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type whisperXPayload struct {
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	Language string `json:"language"`
}

// LoadWhisperXJSON reads a WhisperX JSON result into a Transcript.
func LoadWhisperXJSON(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	transcript := Transcript{Language: payload.Language, Segments: make([]Segment, 0, len(payload.Segments))}
	for idx, seg := range payload.Segments {
		transcript.Segments = append(transcript.Segments, Segment{
			ID:    idx,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return transcript, nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 defaults torch.load to weights_only=true, which breaks
	// WhisperX and pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}
