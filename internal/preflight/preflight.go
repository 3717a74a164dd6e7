package preflight

import (
	"context"
	"net/http"
	"strings"

	"captioner/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks and, when network is true, the
// credential checks for the configured ASR engine and asset store.
func RunAll(ctx context.Context, cfg *config.Config, client *http.Client, network bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if results[0].Passed {
		results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinWorkDirFreeBytes))
	}
	if cfg.Inbox.Enabled {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Inbox.Dir))
	}
	if !network {
		return results
	}

	if strings.EqualFold(cfg.ASR.Engine, "openai") {
		results = append(results, CheckOpenAI(ctx, client, cfg.ASR.OpenAIBaseURL, cfg.ASR.OpenAIAPIKey))
	}
	if strings.EqualFold(cfg.Storage.Backend, "cloudinary") {
		results = append(results, CheckCloudinary(ctx, client,
			cfg.Storage.CloudinaryBaseURL,
			cfg.Storage.CloudinaryCloudName,
			cfg.Storage.CloudinaryAPIKey,
			cfg.Storage.CloudinaryAPISecret,
		))
	}
	return results
}
