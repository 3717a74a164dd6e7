package api

import (
	"captioner/internal/deps"
	"captioner/internal/runlog"
)

// FromRun converts a journal row to its API representation.
func FromRun(run runlog.Run) Run {
	dto := Run{
		ID:              run.ID,
		Source:          string(run.Source),
		Filename:        run.Filename,
		Status:          string(run.Status),
		Stage:           run.Stage,
		VideoURL:        run.VideoURL,
		Segments:        run.Segments,
		FailureStage:    run.FailureStage,
		FailureKind:     run.FailureKind,
		FailureMessage:  run.FailureMessage,
		CleanupFailures: run.CleanupFailures,
		InputBytes:      run.InputBytes,
	}
	if !run.CreatedAt.IsZero() {
		dto.CreatedAt = run.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !run.UpdatedAt.IsZero() {
		dto.UpdatedAt = run.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = run.FinishedAt.UTC().Format(dateTimeFormat)
		dto.DurationSeconds = run.Duration().Seconds()
	}
	return dto
}

// FromRuns converts journal rows into API DTOs, preserving order.
func FromRuns(runs []runlog.Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromRunStats converts journal counters.
func FromRunStats(stats runlog.Stats) RunStats {
	return RunStats{Running: stats.Running, Succeeded: stats.Succeeded, Failed: stats.Failed}
}

// FromDependencies converts binary checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Path:        dep.Path,
			Detail:      dep.Detail,
		}
	}
	return out
}
