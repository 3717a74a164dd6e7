package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrUpstream      = errors.New("upstream service error")
	ErrUnavailable   = errors.New("capacity unavailable")
)

// Kind is the coarse failure class reported to API clients.
type Kind string

const (
	KindClient   Kind = "client"
	KindInternal Kind = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapContext behaves like Wrap but reclassifies context deadline failures as
// ErrTimeout so callers can report them distinctly.
func WrapContext(ctx context.Context, marker error, stage, operation, message string, err error) error {
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		marker = ErrTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		marker = ErrTimeout
	}
	return Wrap(marker, stage, operation, message, err)
}

// FailureKind maps an error to the class surfaced to API clients. Only
// validation failures are the caller's fault.
func FailureKind(err error) Kind {
	if errors.Is(err, ErrValidation) {
		return KindClient
	}
	return KindInternal
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
