package asr_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captioner/internal/asr"
	"captioner/internal/services"
)

func argValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestWhisperXTranscribeParsesJSONAndCleansOutputDir(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "run1-audio.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	var gotName string
	var gotArgs []string
	var outputDir string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		outputDir = argValue(args, "--output_dir")
		payload := `{"language":"en","segments":[{"start":0.5,"end":1.25,"text":" Hello"},{"start":1.5,"end":2.0,"text":"world "}]}`
		return nil, os.WriteFile(filepath.Join(outputDir, "run1-audio.json"), []byte(payload), 0o644)
	}

	engine := asr.NewWhisperX(asr.WhisperXConfig{Model: "small", Language: "en"}, asr.WithCommandRunner(runner))
	transcript, err := engine.Transcribe(context.Background(), audio)
	require.NoError(t, err)

	assert.Equal(t, asr.UVXCommand, gotName)
	assert.Equal(t, "small", argValue(gotArgs, "--model"))
	assert.Equal(t, "json", argValue(gotArgs, "--output_format"))
	assert.Equal(t, "en", argValue(gotArgs, "--language"))
	assert.Equal(t, "cpu", argValue(gotArgs, "--device"))
	assert.Equal(t, asr.VADMethodSilero, argValue(gotArgs, "--vad_method"))
	assert.Contains(t, gotArgs, audio)

	require.Len(t, transcript.Segments, 2)
	assert.Equal(t, 0.5, transcript.Segments[0].Start)
	assert.Equal(t, 1.25, transcript.Segments[0].End)
	assert.Equal(t, "Hello world", transcript.Text())
	assert.Equal(t, "en", transcript.Language)

	_, statErr := os.Stat(outputDir)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "whisperx output dir should be removed")
}

func TestWhisperXRunnerFailureIsExternalToolError(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("CUDA out of memory"), errors.New("exit status 1")
	}
	engine := asr.NewWhisperX(asr.WhisperXConfig{}, asr.WithCommandRunner(runner))
	_, err := engine.Transcribe(context.Background(), audio)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrExternalTool)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestWhisperXMissingJSONFails(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil }
	engine := asr.NewWhisperX(asr.WhisperXConfig{}, asr.WithCommandRunner(runner))
	_, err := engine.Transcribe(context.Background(), audio)
	assert.ErrorIs(t, err, services.ErrExternalTool)
}

func TestWhisperXPyannoteAndCUDAArgs(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	var gotArgs []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, os.WriteFile(filepath.Join(argValue(args, "--output_dir"), "a.json"), []byte(`{"segments":[]}`), 0o644)
	}
	engine := asr.NewWhisperX(asr.WhisperXConfig{CUDAEnabled: true, VADMethod: "pyannote", HFToken: "hf"}, asr.WithCommandRunner(runner))
	transcript, err := engine.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Empty(t, transcript.Segments)
	assert.Equal(t, asr.CUDAIndexURL, argValue(gotArgs, "--index-url"))
	assert.Equal(t, "cuda", argValue(gotArgs, "--device"))
	assert.Equal(t, "hf", argValue(gotArgs, "--hf_token"))
	assert.Equal(t, asr.DefaultModel, argValue(gotArgs, "--model"))
}
