package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := bus.Subscribe(ctx, "sub-1")
	second := bus.Subscribe(ctx, "sub-2")

	bus.PublishTicketClosed("ticket-1", "CASH")

	for name, ch := range map[string]<-chan Event{"sub-1": first, "sub-2": second} {
		select {
		case event := <-ch:
			if event.Type != EventTicketClosed {
				t.Errorf("%s: type = %s, want %s", name, event.Type, EventTicketClosed)
			}
			data, ok := event.Data.(map[string]string)
			if !ok || data["ticket_id"] != "ticket-1" || data["method"] != "CASH" {
				t.Errorf("%s: data = %#v", name, event.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no event received", name)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(context.Background(), "sub-1")

	bus.Unsubscribe("sub-1")

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Publishing after unsubscribe must not panic.
	bus.PublishTicketCancelled("ticket-1")
}

func TestSubscribeCleanupOnContextCancel(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch := bus.Subscribe(ctx, "sub-1")
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestPublishSkipsFullChannel(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus.Subscribe(ctx, "slow")

	// The subscriber buffer holds 10; anything past that is dropped
	// rather than blocking the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			bus.PublishLineAdded("ticket-1", "line-1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestFormatSSE(t *testing.T) {
	event := Event{
		Type: EventTableStatusChanged,
		Data: map[string]string{"table_id": "table-1", "status": "FREE"},
	}

	formatted, err := FormatSSE(event)
	if err != nil {
		t.Fatalf("FormatSSE: %v", err)
	}

	want := "event: table_status_changed\ndata: {\"status\":\"FREE\",\"table_id\":\"table-1\"}\n\n"
	if formatted != want {
		t.Errorf("formatted = %q, want %q", formatted, want)
	}
}
