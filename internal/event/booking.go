// Package event defines the booking lifecycle events carried on the message bus.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/messaging"
)

// TypeHeader names the message header carrying the event type.
const TypeHeader = "event-type"

// Type identifies a booking lifecycle event.
type Type string

const (
	BookingCreated       Type = "booking.created"
	BookingStatusChanged Type = "booking.status_changed"
	BookingArchived      Type = "booking.archived"
)

// Booking is the payload of every booking lifecycle event.
type Booking struct {
	Type           Type          `json:"type"`
	BookingID      int64         `json:"booking_id"`
	TrackingID     string        `json:"tracking_id"`
	CustomerName   string        `json:"customer_name"`
	Email          string        `json:"email"`
	Status         entity.Status `json:"status"`
	PreviousStatus entity.Status `json:"previous_status,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// FromBooking builds an event describing b.
func FromBooking(t Type, b *entity.Booking, occurredAt time.Time) Booking {
	return Booking{
		Type:         t,
		BookingID:    b.ID,
		TrackingID:   b.TrackingID,
		CustomerName: b.CustomerName,
		Email:        b.Email,
		Status:       b.Status,
		OccurredAt:   occurredAt,
	}
}

// Message encodes the event for the bus, keyed by booking so one booking's events stay ordered.
func (e Booking) Message() (messaging.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	return messaging.Message{
		Key:     []byte(fmt.Sprintf("booking-%d", e.BookingID)),
		Value:   payload,
		Headers: map[string]string{TypeHeader: string(e.Type)},
		Time:    e.OccurredAt,
	}, nil
}

// Decode parses a bus message into a booking event.
func Decode(msg messaging.Message) (Booking, error) {
	var e Booking
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return Booking{}, fmt.Errorf("decode booking event: %w", err)
	}
	if e.Type == "" {
		e.Type = Type(msg.Header(TypeHeader))
	}
	return e, nil
}
