package asr

import (
	"context"

	"golang.org/x/sync/semaphore"

	"captioner/internal/services"
)

// Limiter bounds how many transcriptions run at once against a shared engine.
// Waiting for a slot honours ctx cancellation.
type Limiter struct {
	engine Engine
	sem    *semaphore.Weighted
}

// NewLimiter wraps engine so at most limit calls to Transcribe run concurrently.
func NewLimiter(engine Engine, limit int) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	return &Limiter{engine: engine, sem: semaphore.NewWeighted(int64(limit))}
}

// Transcribe waits for a slot and then delegates to the wrapped engine.
func (l *Limiter) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Transcript{}, services.WrapContext(ctx, services.ErrTransient, "transcription", "await slot", "", err)
	}
	defer l.sem.Release(1)
	return l.engine.Transcribe(ctx, audioPath)
}
