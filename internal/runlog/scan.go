package runlog

import (
	"database/sql"
	"time"
)

const runColumns = `id, source, filename, status, stage, video_url, segments,
    failure_stage, failure_kind, failure_message, cleanup_failures, input_bytes,
    created_at, updated_at, finished_at`

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run            Run
		source, status string
		filename       sql.NullString
		videoURL       sql.NullString
		failureStage   sql.NullString
		failureKind    sql.NullString
		failureMessage sql.NullString
		createdRaw     string
		updatedRaw     string
		finishedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID, &source, &filename, &status, &run.Stage, &videoURL, &run.Segments,
		&failureStage, &failureKind, &failureMessage, &run.CleanupFailures, &run.InputBytes,
		&createdRaw, &updatedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Source = Source(source)
	run.Status = Status(status)
	run.Filename = filename.String
	run.VideoURL = videoURL.String
	run.FailureStage = failureStage.String
	run.FailureKind = failureKind.String
	run.FailureMessage = failureMessage.String
	run.CreatedAt = parseTime(createdRaw)
	run.UpdatedAt = parseTime(updatedRaw)
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished := parseTime(finishedRaw.String)
		run.FinishedAt = &finished
	}
	return &run, nil
}

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
