package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"captioner/internal/logging"
	"captioner/internal/services"
)

// Kind names one of the four per-run artifacts.
type Kind string

const (
	KindInput     Kind = "input"
	KindAudio     Kind = "audio"
	KindSubtitles Kind = "subtitles"
	KindOutput    Kind = "output"
)

// DefaultInputExtension is used when an upload has no usable extension.
const DefaultInputExtension = ".mp4"

// Set is the group of scratch paths owned by one run. Every path embeds the
// run ID, so distinct runs never share a file.
type Set struct {
	RunID     string
	Input     string
	Audio     string
	Subtitles string
	Output    string
}

// Paths returns the artifact paths in creation order.
func (s Set) Paths() []string {
	return []string{s.Input, s.Audio, s.Subtitles, s.Output}
}

// Path returns the path for a single kind.
func (s Set) Path(kind Kind) string {
	switch kind {
	case KindInput:
		return s.Input
	case KindAudio:
		return s.Audio
	case KindSubtitles:
		return s.Subtitles
	case KindOutput:
		return s.Output
	default:
		return ""
	}
}

// RemovalFailure pairs a path with the error that kept it on disk.
type RemovalFailure struct {
	Path string
	Err  error
}

// ReleaseReport summarizes a Release call.
type ReleaseReport struct {
	Removed  []string
	Missing  []string
	Failures []RemovalFailure
}

// Clean reports whether every artifact is gone.
func (r ReleaseReport) Clean() bool {
	return len(r.Failures) == 0
}

// Manager hands out artifact paths under a working directory and removes
// them when a run finishes. It never creates files itself.
type Manager struct {
	workDir string
	logger  *slog.Logger
}

// NewManager constructs a Manager rooted at workDir.
func NewManager(workDir string, logger *slog.Logger) *Manager {
	return &Manager{
		workDir: workDir,
		logger:  logging.NewComponentLogger(logger, "artifacts"),
	}
}

// WorkDir returns the directory artifacts are allocated in.
func (m *Manager) WorkDir() string {
	return m.workDir
}

// Allocate derives the four artifact paths for runID. inputExt keeps the
// upload's container extension; an empty or unsafe value falls back to .mp4.
func (m *Manager) Allocate(runID, inputExt string) (Set, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return Set{}, services.Wrap(services.ErrValidation, "input", "allocate artifacts", "run id required", nil)
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return Set{}, services.Wrap(services.ErrValidation, "input", "allocate artifacts", fmt.Sprintf("unsafe run id %q", runID), nil)
	}
	if strings.TrimSpace(m.workDir) == "" {
		return Set{}, services.Wrap(services.ErrConfiguration, "input", "allocate artifacts", "work directory not configured", nil)
	}
	ext := NormalizeExtension(inputExt)
	base := filepath.Join(m.workDir, runID)
	return Set{
		RunID:     runID,
		Input:     base + "-input" + ext,
		Audio:     base + "-audio.wav",
		Subtitles: base + "-subtitles.srt",
		Output:    base + "-output.mp4",
	}, nil
}

// NormalizeExtension lowercases ext and ensures a leading dot. Values holding
// separators or anything other than ASCII letters and digits fall back to
// DefaultInputExtension.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || len(ext) > 10 {
		return DefaultInputExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultInputExtension
		}
	}
	return "." + ext
}

// Release removes every artifact in set. Missing files are not failures.
// Each path is attempted regardless of earlier failures; failures are logged
// and reported, never returned as an error.
func (m *Manager) Release(set Set) ReleaseReport {
	var report ReleaseReport
	for _, path := range set.Paths() {
		if strings.TrimSpace(path) == "" {
			continue
		}
		err := os.Remove(path)
		switch {
		case err == nil:
			report.Removed = append(report.Removed, path)
		case errors.Is(err, fs.ErrNotExist):
			report.Missing = append(report.Missing, path)
		default:
			report.Failures = append(report.Failures, RemovalFailure{Path: path, Err: err})
			logging.WarnWithContext(m.logger, "failed to remove run artifact", "artifact_cleanup_failed",
				logging.String(logging.FieldRunID, set.RunID),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "temporary file left on disk"),
			)
		}
	}
	if len(report.Removed) > 0 || len(report.Failures) > 0 {
		m.logger.Debug("run artifacts released",
			logging.String(logging.FieldRunID, set.RunID),
			logging.Int("removed", len(report.Removed)),
			logging.Int("failed", len(report.Failures)),
		)
	}
	return report
}
