package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"captioner/internal/fileutil"
	"captioner/internal/services"
)

// DefaultBinary is the ffmpeg executable resolved from PATH.
const DefaultBinary = "ffmpeg"

// Audio extraction targets 16 kHz mono 16-bit PCM, the input format speech
// models expect.
const (
	AudioSampleRate = "16000"
	AudioChannels   = "1"
	AudioCodec      = "pcm_s16le"
)

// Tool wraps the ffmpeg operations a run needs.
type Tool struct {
	binary string
	runner Runner
}

// New constructs a Tool. Empty binary uses DefaultBinary; nil runner uses ExecRunner.
func New(binary string, runner Runner) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tool{binary: binary, runner: runner}
}

// Binary returns the executable the tool invokes.
func (t *Tool) Binary() string {
	return t.binary
}

// ExtractAudioArgs builds the arguments for ExtractAudio.
func ExtractAudioArgs(input, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn", "-sn", "-dn",
		"-ac", AudioChannels,
		"-ar", AudioSampleRate,
		"-c:a", AudioCodec,
		output,
	}
}

// BurnSubtitlesArgs builds the arguments for BurnSubtitles. Audio is copied
// unchanged; video is re-encoded with the default encoder for the container.
func BurnSubtitlesArgs(input, subtitles, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", "subtitles=" + EscapeFilterPath(subtitles),
		"-c:a", "copy",
		output,
	}
}

// ExtractAudio writes the first audio track of input to output as WAV.
func (t *Tool) ExtractAudio(ctx context.Context, input, output string) error {
	return t.run(ctx, "audio-extraction", "extract audio", output, ExtractAudioArgs(input, output))
}

// BurnSubtitles renders the SRT at subtitles into the frames of input.
func (t *Tool) BurnSubtitles(ctx context.Context, input, subtitles, output string) error {
	return t.run(ctx, "render", "burn subtitles", output, BurnSubtitlesArgs(input, subtitles, output))
}

// run executes ffmpeg and checks that output exists and is non-empty.
// Success requires both a zero exit and the output file.
func (t *Tool) run(ctx context.Context, stage, operation, output string, args []string) error {
	result, err := t.runner.Run(ctx, t.binary, args...)
	if err != nil {
		return services.WrapContext(ctx, services.ErrExternalTool, stage, operation, "ffmpeg did not complete", err)
	}
	if result.ExitCode != 0 {
		return services.Wrap(services.ErrExternalTool, stage, operation,
			fmt.Sprintf("ffmpeg exited with status %d: %s", result.ExitCode, stderrTail(result.Stderr)), nil)
	}
	if _, ok := fileutil.NonEmptyFile(output); !ok {
		return services.Wrap(services.ErrExternalTool, stage, operation, "ffmpeg produced no output at "+output, nil)
	}
	return nil
}

// EscapeFilterPath quotes a path for use as a filtergraph option value.
// Backslashes, colons and single quotes are escaped for the option parser,
// then the value is escaped again for the graph parser.
func EscapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	level1 := replacer.Replace(path)
	graph := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
	return graph.Replace(level1)
}

func stderrTail(stderr []byte) string {
	text := strings.TrimSpace(string(stderr))
	if text == "" {
		return "no stderr output"
	}
	const limit = 400
	if len(text) > limit {
		text = "..." + text[len(text)-limit:]
	}
	return text
}
