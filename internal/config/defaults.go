package config

const (
	defaultWorkDir                     = "~/.local/share/captioner/work"
	defaultStateDir                    = "~/.local/share/captioner"
	defaultLogDir                      = "~/.local/share/captioner/logs"
	defaultInboxDir                    = "~/captioner/inbox"
	defaultAPIBind                     = "127.0.0.1:7488"
	defaultMaxUploadMiB                = 2048
	defaultMaxConcurrentRuns           = 4
	defaultMaxConcurrentTranscriptions = 1
	defaultInputExtension              = ".mp4"
	defaultExtractTimeoutSeconds       = 600
	defaultTranscribeTimeoutSeconds    = 3600
	defaultRenderTimeoutSeconds        = 3600
	defaultUploadTimeoutSeconds        = 900
	defaultASREngine                   = "whisperx"
	defaultASRModel                    = "base"
	defaultVADMethod                   = "silero"
	defaultOpenAIBaseURL               = "https://api.openai.com/v1"
	defaultFFmpegBinary                = "ffmpeg"
	defaultFFprobeBinary               = "ffprobe"
	defaultStorageBackend              = "cloudinary"
	defaultStorageFolder               = "subtitle_videos"
	defaultCloudinaryBaseURL           = "https://api.cloudinary.com"
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind:         defaultAPIBind,
			MaxUploadMiB: defaultMaxUploadMiB,
		},
		Pipeline: Pipeline{
			MaxConcurrentRuns:           defaultMaxConcurrentRuns,
			MaxConcurrentTranscriptions: defaultMaxConcurrentTranscriptions,
			ProbeInput:                  true,
			DefaultInputExtension:       defaultInputExtension,
			ExtractTimeoutSeconds:       defaultExtractTimeoutSeconds,
			TranscribeTimeoutSeconds:    defaultTranscribeTimeoutSeconds,
			RenderTimeoutSeconds:        defaultRenderTimeoutSeconds,
			UploadTimeoutSeconds:        defaultUploadTimeoutSeconds,
		},
		ASR: ASR{
			Engine:        defaultASREngine,
			Model:         defaultASRModel,
			VADMethod:     defaultVADMethod,
			OpenAIBaseURL: defaultOpenAIBaseURL,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Storage: Storage{
			Backend:           defaultStorageBackend,
			Folder:            defaultStorageFolder,
			CloudinaryBaseURL: defaultCloudinaryBaseURL,
		},
		Inbox: Inbox{
			Dir: defaultInboxDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
