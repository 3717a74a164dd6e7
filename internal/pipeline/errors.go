package pipeline

import (
	"errors"
	"fmt"

	"captioner/internal/services"
)

// ErrUnsupportedMedia marks uploads whose container has no usable video stream.
var ErrUnsupportedMedia = errors.New("unsupported media")

// StageError carries the first failure of a run and the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports whether the failure is the caller's fault.
func (e *StageError) Kind() services.Kind {
	if IsClientError(e) {
		return services.KindClient
	}
	return services.KindInternal
}

// FailedStage returns the stage recorded on err, or StageInternal when err
// carries none.
func FailedStage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr.Stage != "" {
		return stageErr.Stage
	}
	return StageInternal
}

// IsClientError reports whether err is a validation failure of the uploaded
// input, as opposed to a fault in the service or its collaborators.
func IsClientError(err error) bool {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		return false
	}
	return stageErr.Stage == StageInput && errors.Is(stageErr.Err, services.ErrValidation)
}

func stageFailure(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
