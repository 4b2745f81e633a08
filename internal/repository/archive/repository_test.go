package archive_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/database/dbtest"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/repository/archive"
)

var epoch = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func activeBooking(id int64, trackingID, name string, createdAt time.Time) *entity.Booking {
	return &entity.Booking{
		ID: id,
		BookingDetails: entity.BookingDetails{
			TrackingID:   trackingID,
			CustomerName: name,
			Email:        gofakeit.Email(),
			DeviceType:   "Laptop",
			ServiceType:  entity.DefaultServiceType,
			Images:       []string{},
			Status:       entity.StatusCompleted,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt.Add(time.Hour),
		},
	}
}

func TestInsertFromActive(t *testing.T) {
	r := archive.NewRepository(dbtest.New(t))
	ctx := context.Background()

	b := activeBooking(42, "TR-4242", "Jane Doe", epoch)
	archived, err := r.InsertFromActive(ctx, b, epoch.Add(2*time.Hour))
	require.NoError(t, err)

	assert.NotZero(t, archived.ID)
	assert.Equal(t, int64(42), archived.OriginalID)
	assert.Equal(t, b.BookingDetails, archived.BookingDetails)
	assert.True(t, archived.ArchivedAt.Equal(epoch.Add(2*time.Hour)))

	stored, err := r.GetByOriginalID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "TR-4242", stored.TrackingID)
	assert.Equal(t, entity.StatusCompleted, stored.Status)

	exists, err := r.TrackingIDExists(ctx, "TR-4242")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = r.GetByOriginalID(ctx, 7)
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestInsertFromActiveClampsArchivedAt(t *testing.T) {
	r := archive.NewRepository(dbtest.New(t))

	b := activeBooking(1, "TR-1001", "Early Clock", epoch)
	archived, err := r.InsertFromActive(context.Background(), b, epoch)
	require.NoError(t, err)
	assert.False(t, archived.ArchivedAt.Before(b.UpdatedAt))
}

func TestInsertFromActiveRejectsSecondCopy(t *testing.T) {
	r := archive.NewRepository(dbtest.New(t))
	ctx := context.Background()

	b := activeBooking(5, "TR-5555", "Jane Doe", epoch)
	_, err := r.InsertFromActive(ctx, b, epoch.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = r.InsertFromActive(ctx, b, epoch.Add(3*time.Hour))
	assert.ErrorIs(t, err, archive.ErrAlreadyArchived)
}

func TestListRecentOrdersByArchivedAt(t *testing.T) {
	r := archive.NewRepository(dbtest.New(t))
	ctx := context.Background()

	// created newest-first but archived oldest-first
	for i := 0; i < 55; i++ {
		b := activeBooking(int64(i+1), fmt.Sprintf("TR-%d", 2000+i), gofakeit.Name(), epoch.Add(-time.Duration(i)*time.Minute))
		_, err := r.InsertFromActive(ctx, b, epoch.Add(time.Duration(i)*time.Hour+2*time.Hour))
		require.NoError(t, err)
	}

	archived, err := r.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, archived, 50)
	assert.Equal(t, int64(55), archived[0].OriginalID)
	for i := 1; i < len(archived); i++ {
		assert.False(t, archived[i].ArchivedAt.After(archived[i-1].ArchivedAt))
	}
}

func TestSearchByText(t *testing.T) {
	r := archive.NewRepository(dbtest.New(t))
	ctx := context.Background()

	older := activeBooking(1, "TR-7001", "Sam Smith", epoch)
	newer := activeBooking(2, "TR-7002", "Kim Smith", epoch.Add(time.Hour))
	other := activeBooking(3, "TR-7003", "Lee Park", epoch.Add(2*time.Hour))
	for _, b := range []*entity.Booking{older, newer, other} {
		_, err := r.InsertFromActive(ctx, b, epoch.Add(5*time.Hour))
		require.NoError(t, err)
	}

	found, err := r.SearchByText(ctx, "smith", 50)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, int64(2), found[0].OriginalID)
	assert.Equal(t, int64(1), found[1].OriginalID)
}

func TestTrackingIDExistsReadsPrimary(t *testing.T) {
	primary := dbtest.New(t)
	replica := dbtest.New(t)
	conns := &database.Connections{Writer: primary.Writer, Reader: replica.Reader}
	ctx := context.Background()

	r := archive.NewRepository(conns)
	_, err := r.InsertFromActive(ctx, activeBooking(9, "TR-9090", "Jane Doe", epoch), epoch.Add(2*time.Hour))
	require.NoError(t, err)

	exists, err := r.TrackingIDExists(ctx, "TR-9090")
	require.NoError(t, err)
	assert.True(t, exists)
}
