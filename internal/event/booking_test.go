package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/event"
	"github.com/infinitetech/repairdesk/internal/messaging"
)

func TestMessageIsKeyedByBooking(t *testing.T) {
	at := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	b := &entity.Booking{ID: 12, BookingDetails: entity.BookingDetails{TrackingID: "TR-1200", Status: entity.StatusReady}}

	e := event.FromBooking(event.BookingStatusChanged, b, at)
	e.PreviousStatus = entity.StatusRepairing

	msg, err := e.Message()
	require.NoError(t, err)
	assert.Equal(t, "booking-12", string(msg.Key))
	assert.Equal(t, "booking.status_changed", msg.Header(event.TypeHeader))

	decoded, err := event.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestDecodeFallsBackToHeaderType(t *testing.T) {
	msg := messaging.Message{
		Value:   []byte(`{"booking_id":3,"tracking_id":"TR-3000"}`),
		Headers: map[string]string{event.TypeHeader: "booking.archived"},
	}

	decoded, err := event.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, event.BookingArchived, decoded.Type)

	_, err = event.Decode(messaging.Message{Value: []byte("{")})
	assert.Error(t, err)
}
