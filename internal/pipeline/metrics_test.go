package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"captioner/internal/asr"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t)
	fail := true
	h.engine = asr.EngineFunc(func(context.Context, string) (asr.Transcript, error) {
		if fail {
			return asr.Transcript{}, errors.New("model crashed")
		}
		return asr.Transcript{}, nil
	})
	orch, err := New(Dependencies{
		Artifacts: newHarnessManager(h),
		Media:     h.media,
		Engine:    h.engine,
		Store:     h.store,
		Metrics:   NewMetrics(reg),
	}, WithAudioVerifier(func(string) error { return nil }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := orch.Run(context.Background(), upload("a.mp4")); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	if _, err := orch.Run(context.Background(), upload("b.mp4")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := counterValue(t, reg, "captioner_runs_total", map[string]string{"outcome": "failed", "stage": StageTranscription}); got != 1 {
		t.Fatalf("failed runs = %v, want 1", got)
	}
	if got := counterValue(t, reg, "captioner_runs_total", map[string]string{"outcome": "succeeded"}); got != 1 {
		t.Fatalf("succeeded runs = %v, want 1", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.runStarted()
	m.runRejected()
	m.observeStage(StageRender, 0)
	m.runFinished(StageRender, errors.New("x"), 0, 1)
}
