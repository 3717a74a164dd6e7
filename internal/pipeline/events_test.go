package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestEventHubTailAndCapacity(t *testing.T) {
	hub := NewEventHub(2)
	hub.Publish(Event{RunID: "a", State: StateReceived})
	hub.Publish(Event{RunID: "b", State: StateReceived})
	hub.Publish(Event{RunID: "c", State: StateReceived})

	events, next := hub.Tail(10)
	if next != 3 {
		t.Fatalf("next = %d, want 3", next)
	}
	if len(events) != 2 || events[0].RunID != "b" || events[1].RunID != "c" {
		t.Fatalf("unexpected tail %+v", events)
	}
	if events[1].Time.IsZero() {
		t.Fatal("publish should stamp time")
	}
}

func TestEventHubFetchSince(t *testing.T) {
	hub := NewEventHub(8)
	for _, id := range []string{"a", "b", "c"} {
		hub.Publish(Event{RunID: id})
	}
	events, next, err := hub.Fetch(context.Background(), 1, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 2 || next != 3 {
		t.Fatalf("unexpected fetch %+v next=%d", events, next)
	}
	events, _, err = hub.Fetch(context.Background(), 3, 0, false)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected nothing new, got %+v %v", events, err)
	}
}

func TestEventHubFetchWaitsForPublish(t *testing.T) {
	hub := NewEventHub(8)
	go func() {
		time.Sleep(10 * time.Millisecond)
		hub.Publish(Event{RunID: "late", State: StateSucceeded})
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, _, err := hub.Fetch(ctx, 0, 0, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].RunID != "late" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestEventHubFetchHonoursCancel(t *testing.T) {
	hub := NewEventHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := hub.Fetch(ctx, 0, 0, true)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestNilHubIsNoop(t *testing.T) {
	var hub *EventHub
	hub.Publish(Event{RunID: "x"})
	if events, _ := hub.Tail(5); events != nil {
		t.Fatalf("expected nil events, got %+v", events)
	}
}
