package events

import (
	"context"
	"encoding/json"
	"sync"
)

// EventType represents the type of event
type EventType string

const (
	EventTicketOpened       EventType = "ticket_opened"
	EventLineAdded          EventType = "line_added"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketCancelled    EventType = "ticket_cancelled"
	EventTableStatusChanged EventType = "table_status_changed"
	EventDiscountApplied    EventType = "discount_applied"
	EventLineComped         EventType = "line_comped"
)

// Event represents a server-sent event
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// EventBus manages SSE subscriptions and broadcasts events
type EventBus struct {
	subscribers map[string]chan Event
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (eb *EventBus) Subscribe(ctx context.Context, id string) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Create buffered channel to prevent blocking
	ch := make(chan Event, 10)
	eb.subscribers[id] = ch

	// Clean up when context is done
	go func() {
		<-ctx.Done()
		eb.Unsubscribe(id)
	}()

	return ch
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, exists := eb.subscribers[id]; exists {
		close(ch)
		delete(eb.subscribers, id)
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(eventType EventType, data interface{}) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	event := Event{
		Type: eventType,
		Data: data,
	}

	// Send to all subscribers (non-blocking)
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Skip if channel is full (prevents blocking)
		}
	}
}

// PublishTicketOpened publishes a ticket opened event
func (eb *EventBus) PublishTicketOpened(ticket interface{}) {
	eb.Publish(EventTicketOpened, ticket)
}

// PublishLineAdded publishes a line added event
func (eb *EventBus) PublishLineAdded(ticketID, lineID string) {
	eb.Publish(EventLineAdded, map[string]string{
		"ticket_id": ticketID,
		"line_id":   lineID,
	})
}

// PublishTicketClosed publishes a ticket closed event
func (eb *EventBus) PublishTicketClosed(ticketID string, method string) {
	eb.Publish(EventTicketClosed, map[string]string{
		"ticket_id": ticketID,
		"method":    method,
	})
}

// PublishTicketCancelled publishes a ticket cancelled event
func (eb *EventBus) PublishTicketCancelled(ticketID string) {
	eb.Publish(EventTicketCancelled, map[string]string{"ticket_id": ticketID})
}

// PublishTableStatusChanged publishes a table status change event
func (eb *EventBus) PublishTableStatusChanged(tableID string, status string) {
	eb.Publish(EventTableStatusChanged, map[string]string{
		"table_id": tableID,
		"status":   status,
	})
}

// PublishDiscountApplied publishes a discount applied event
func (eb *EventBus) PublishDiscountApplied(ticketID string, amount float64) {
	eb.Publish(EventDiscountApplied, map[string]interface{}{
		"ticket_id": ticketID,
		"amount":    amount,
	})
}

// PublishLineComped publishes a line comped event
func (eb *EventBus) PublishLineComped(lineID string, reason string) {
	eb.Publish(EventLineComped, map[string]string{
		"line_id": lineID,
		"reason":  reason,
	})
}

// FormatSSE formats an event as Server-Sent Event string
func FormatSSE(event Event) (string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return "", err
	}

	return "event: " + string(event.Type) + "\ndata: " + string(data) + "\n\n", nil
}
