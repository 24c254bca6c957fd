package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"vfi-client/internal/domain"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeState, State: domain.JobStateConnecting})
	bus.Publish(Event{Type: EventTypeProgress, Progress: 20})
	bus.Publish(Event{Type: EventTypeFrame, Position: 0})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if events[0].Progress != 20 || events[1].Type != EventTypeFrame {
		t.Fatalf("unexpected events: %+v", events)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("last seq = %d, want 3", bus.LastSeq())
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusEmpty checks reads before any publish.
func TestEventBusEmpty(t *testing.T) {
	bus := NewEventBus(0)
	if got := bus.Since(0); got != nil {
		t.Fatalf("events = %+v, want nil", got)
	}
}

// TestEventBusWaitWakesOnPublish checks that a blocked reader sees the next event.
func TestEventBusWaitWakesOnPublish(t *testing.T) {
	bus := NewEventBus(0)
	bus.Publish(Event{Type: EventTypeState, State: domain.JobStateConnecting})

	got := make(chan []Event, 1)
	go func() {
		events, err := bus.Wait(context.Background(), 1)
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
		got <- events
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Publish(Event{Type: EventTypeProgress, Progress: 40})

	select {
	case events := <-got:
		if len(events) != 1 || events[0].Seq != 2 || events[0].Progress != 40 {
			t.Fatalf("events = %+v", events)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after publish")
	}
}

// TestEventBusWaitHonorsContext checks that Wait gives up when ctx ends.
func TestEventBusWaitHonorsContext(t *testing.T) {
	bus := NewEventBus(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	events, err := bus.Wait(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want %v", err, context.DeadlineExceeded)
	}
	if events != nil {
		t.Fatalf("events = %+v, want nil", events)
	}
}
