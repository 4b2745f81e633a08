package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/database/dbtest"
)

const insertBooking = `INSERT INTO bookings (tracking_id, customer_name, email, device_type, issue_description, images, created_at, updated_at)
VALUES (?, 'Jane Doe', 'jane@x.com', 'Smartphone', '', '[]', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

func TestIsUniqueViolation(t *testing.T) {
	conns := dbtest.New(t)
	ctx := context.Background()

	_, err := conns.Writer.ExecContext(ctx, insertBooking, "TR-1234")
	require.NoError(t, err)

	_, err = conns.Writer.ExecContext(ctx, insertBooking, "TR-1234")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.True(t, database.IsUniqueViolation(fmt.Errorf("insert: %w", err)))

	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("duplicate")))
}

func TestStatusCheckConstraint(t *testing.T) {
	conns := dbtest.New(t)

	_, err := conns.Writer.ExecContext(context.Background(),
		`INSERT INTO bookings (tracking_id, customer_name, email, device_type, images, status, created_at, updated_at)
VALUES ('TR-2000', 'A', 'a@x.com', 'Laptop', '[]', 'Lost', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestSupportsRowLockingAndNow(t *testing.T) {
	conns := dbtest.New(t)

	assert.False(t, database.SupportsRowLocking(conns.Writer))

	now, err := conns.Now(context.Background())
	require.NoError(t, err)
	assert.False(t, now.IsZero())
}
