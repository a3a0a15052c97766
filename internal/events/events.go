package events

import (
	"encoding/json"
	"sync"
	"time"

	"dogsitter/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventBookingDeleted   = "booking_deleted"
	EventReviewCreated    = "review_created"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingCompleted,
	EventBookingDeleted,
	EventReviewCreated,
}

// BookingEventPayload is the booking snapshot carried by booking events.
type BookingEventPayload struct {
	BookingID   int64        `json:"booking_id"`
	UserID      int64        `json:"user_id"`
	DogSitterID int64        `json:"dogsitter_id"`
	Status      string       `json:"status"`
	StartDate   models.Date  `json:"start_date"`
	EndDate     models.Date  `json:"end_date"`
	TotalPrice  models.Money `json:"total_price"`
	Animals     int          `json:"animals"`
	ChangedByID int64        `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b for an event caused by actorID.
func NewBookingPayload(b *models.Booking, actorID int64) BookingEventPayload {
	return BookingEventPayload{
		BookingID:   b.ID,
		UserID:      b.UserID,
		DogSitterID: b.DogSitterID,
		Status:      b.Status,
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
		TotalPrice:  b.TotalPrice,
		Animals:     len(b.Animals),
		ChangedByID: actorID,
	}
}

type ReviewEventPayload struct {
	ReviewID    int64 `json:"review_id"`
	BookingID   int64 `json:"booking_id"`
	DogSitterID int64 `json:"dogsitter_id"`
	UserID      int64 `json:"user_id"`
	Rating      int   `json:"rating"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs the subscribers of the event type synchronously and returns
// how many of them failed.
func (b *EventBus) Publish(event *Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			failed++
		}
	}
	return failed
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
