package wav

import (
	"fmt"
	"os"
	"time"

	gowav "github.com/youpy/go-wav"

	"captioner/internal/services"
)

// Info describes a verified WAV file.
type Info struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	Duration      time.Duration
}

// Verify opens path and checks that it holds linear PCM audio with a
// readable header. It guards against ffmpeg exiting cleanly while writing
// something the ASR engine cannot read.
func Verify(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, "audio-extraction", "verify wav", "open", err)
	}
	defer file.Close()

	reader := gowav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, "audio-extraction", "verify wav", "read header", err)
	}
	if format.AudioFormat != gowav.AudioFormatPCM {
		return Info{}, services.Wrap(services.ErrExternalTool, "audio-extraction", "verify wav",
			fmt.Sprintf("unexpected audio format %d", format.AudioFormat), nil)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		return Info{}, services.Wrap(services.ErrExternalTool, "audio-extraction", "verify wav", "header reports no channels or sample rate", nil)
	}
	duration, err := reader.Duration()
	if err != nil {
		return Info{}, services.Wrap(services.ErrExternalTool, "audio-extraction", "verify wav", "read duration", err)
	}
	return Info{
		SampleRate:    format.SampleRate,
		Channels:      format.NumChannels,
		BitsPerSample: format.BitsPerSample,
		Duration:      duration,
	}, nil
}
