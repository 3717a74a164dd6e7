package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"captioner/internal/logging"
)

// DefaultStaleAge is how old a leftover artifact must be before a sweep
// removes it.
const DefaultStaleAge = 24 * time.Hour

var artifactSuffixes = []string{"-input", "-audio.wav", "-subtitles.srt", "-output.mp4"}

// SweepResult contains the outcome of a stale artifact sweep.
type SweepResult struct {
	Removed  []string
	Failures []RemovalFailure
}

// SweepStale removes artifact files older than maxAge from the work
// directory. Files left behind by a crashed process are the target; fresh
// files from in-flight runs are never touched.
func (m *Manager) SweepStale(ctx context.Context, maxAge time.Duration) SweepResult {
	var result SweepResult
	if strings.TrimSpace(m.workDir) == "" {
		return result
	}
	if maxAge <= 0 {
		maxAge = DefaultStaleAge
	}
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Failures = append(result.Failures, RemovalFailure{Path: m.workDir, Err: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if entry.IsDir() || !looksLikeArtifact(entry.Name()) {
			continue
		}
		path := filepath.Join(m.workDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Failures = append(result.Failures, RemovalFailure{Path: path, Err: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Failures = append(result.Failures, RemovalFailure{Path: path, Err: err})
			logging.WarnWithContext(m.logger, "failed to remove stale artifact", "artifact_sweep_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		m.logger.Info("removed stale artifact",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "artifact_sweep"),
		)
	}
	return result
}

func looksLikeArtifact(name string) bool {
	for _, suffix := range artifactSuffixes {
		if suffix == "-input" {
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if strings.HasSuffix(stem, suffix) {
				return true
			}
			continue
		}
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
