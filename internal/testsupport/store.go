package testsupport

import (
	"context"
	"testing"

	"captioner/internal/config"
	"captioner/internal/runlog"
)

// MustOpenStore opens the run journal for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()

	store, err := runlog.Open(cfg.RunsDBPath())
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRun journals a run and optionally finishes it. An empty videoURL with
// a non-empty failStage records a failure.
func SeedRun(t testing.TB, store *runlog.Store, id, filename, videoURL, failStage string) {
	t.Helper()

	ctx := context.Background()
	if err := store.Begin(ctx, id, runlog.SourceAPI, filename, "input"); err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	switch {
	case videoURL != "":
		if err := store.Succeed(ctx, id, videoURL, 1); err != nil {
			t.Fatalf("store.Succeed: %v", err)
		}
	case failStage != "":
		if err := store.Fail(ctx, id, failStage, "internal", "boom"); err != nil {
			t.Fatalf("store.Fail: %v", err)
		}
	}
}
