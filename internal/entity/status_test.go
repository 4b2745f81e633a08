package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitetech/repairdesk/internal/entity"
)

func TestParseStatus(t *testing.T) {
	for _, s := range entity.Statuses() {
		got, err := entity.ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	for _, raw := range []string{"", "booked", "Cancelled", "Shipped"} {
		_, err := entity.ParseStatus(raw)
		assert.Error(t, err, raw)
	}
}

func TestRecordProvenance(t *testing.T) {
	now := time.Now().UTC()
	details := entity.BookingDetails{TrackingID: "TR-1234", CreatedAt: now, UpdatedAt: now}

	active := entity.ActiveRecord(entity.Booking{ID: 7, BookingDetails: details})
	assert.False(t, active.Archived())
	assert.Equal(t, int64(7), active.ID)

	archived := entity.ArchivedRecord(entity.ArchivedBooking{ID: 1, OriginalID: 7, BookingDetails: details, ArchivedAt: now})
	assert.True(t, archived.Archived())
	assert.Equal(t, int64(7), archived.ID)
	assert.Equal(t, now, *archived.ArchivedAt)
}
