package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/cache"
	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/database/dbtest"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/event"
	"github.com/infinitetech/repairdesk/internal/messaging"
	archiverepo "github.com/infinitetech/repairdesk/internal/repository/archive"
	bookingrepo "github.com/infinitetech/repairdesk/internal/repository/booking"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

var epoch = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Add(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type recordingBus struct {
	messaging.NoopClient
	mu     sync.Mutex
	events []event.Booking
}

func (b *recordingBus) Publish(_ context.Context, msgs ...messaging.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, msg := range msgs {
		e, err := event.Decode(msg)
		if err != nil {
			return err
		}
		b.events = append(b.events, e)
	}
	return nil
}

func (b *recordingBus) types() []event.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]event.Type, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.Type)
	}
	return types
}

type sequenceGenerator struct {
	ids  []string
	next int
}

func (g *sequenceGenerator) Generate() string {
	id := g.ids[g.next%len(g.ids)]
	g.next++
	return id
}

type fixture struct {
	svc   *Service
	conns *database.Connections
	store *memoryStore
	bus   *recordingBus
}

func newFixture(t *testing.T, generator TrackingGenerator) *fixture {
	t.Helper()

	conns := dbtest.New(t)
	store := newMemoryStore()
	bus := &recordingBus{}

	cfg := config.Config{
		Messaging: config.Messaging{Enabled: true},
		Booking: config.Booking{
			TrackingAttempts: 8,
			IdempotencyTTL:   time.Hour,
			LookupCacheTTL:   time.Minute,
		},
	}

	svc := NewService(Params{
		Connections: conns,
		Bookings:    bookingrepo.NewRepository(conns),
		Archive:     archiverepo.NewRepository(conns),
		Cache:       store,
		Config:      cfg,
		Logger:      zap.NewNop(),
		Publisher:   bus,
		Generator:   generator,
	})

	clock := epoch
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	return &fixture{svc: svc, conns: conns, store: store, bus: bus}
}

func input(name string) CreateInput {
	return CreateInput{
		CustomerName:     name,
		Email:            strings.ToLower(gofakeit.LetterN(10)) + "@example.com",
		Phone:            gofakeit.Phone(),
		DeviceType:       "Smartphone",
		IssueDescription: "Cracked screen",
		Location:         gofakeit.Street(),
		BookingDate:      "2025-03-02",
		BookingTime:      "10:30",
	}
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := input("Jane Doe")
	in.Email = "jane@example.com"
	created, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	assert.True(t, IsTrackingID(created.TrackingID), created.TrackingID)
	assert.Equal(t, entity.StatusBooked, created.Status)
	assert.Equal(t, entity.DefaultServiceType, created.ServiceType)
	assert.Equal(t, []string{}, created.Images)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	found, err := f.svc.Lookup(ctx, " "+created.TrackingID+" ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Jane Doe", found.CustomerName)

	byID, err := f.svc.Lookup(ctx, fmt.Sprint(created.ID))
	require.NoError(t, err)
	assert.Equal(t, created.TrackingID, byID.TrackingID)

	repairing, err := f.svc.UpdateStatus(ctx, created.ID, "Repairing")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRepairing, repairing.Status)
	assert.True(t, repairing.UpdatedAt.After(created.UpdatedAt))

	found, err = f.svc.Lookup(ctx, created.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRepairing, found.Status)

	archived, err := f.svc.Archive(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, archived.OriginalID)
	assert.Equal(t, created.TrackingID, archived.TrackingID)
	assert.Equal(t, entity.StatusRepairing, archived.Status)
	assert.False(t, archived.ArchivedAt.Before(archived.UpdatedAt))

	_, err = f.svc.Lookup(ctx, created.TrackingID)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	back, err := f.svc.ArchivedByOriginalID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.TrackingID, back.TrackingID)

	records, err := f.svc.Find(ctx, Query{Text: "jane"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Archived())
	assert.Equal(t, created.ID, records[0].ID)

	assert.Equal(t, []event.Type{event.BookingCreated, event.BookingStatusChanged, event.BookingArchived}, f.bus.types())
	assert.Equal(t, entity.StatusBooked, f.bus.events[1].PreviousStatus)
}

func TestCreateRequiresCustomerEmailAndDevice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := input("")
	in.DeviceType = "  "
	_, err := f.svc.Create(ctx, in)
	require.True(t, errorbank.Is(err, errorbank.KindBadRequest))
	assert.Equal(t, []string{"customerName", "deviceType"}, errorbank.From(err).Details()["missing"])

	records, err := f.svc.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Jane Doe"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, created.ID, "Shipped")
	require.True(t, errorbank.Is(err, errorbank.KindBadRequest))
	assert.Equal(t, entity.Statuses(), errorbank.From(err).Details()["allowed"])

	stored, err := f.svc.Lookup(ctx, created.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusBooked, stored.Status)
	assert.True(t, stored.UpdatedAt.Equal(created.UpdatedAt))

	_, err = f.svc.UpdateStatus(ctx, created.ID+1000, "Ready")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestUpdateStatusReopensCompletedBooking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Jane Doe"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, created.ID, "Completed")
	require.NoError(t, err)
	reopened, err := f.svc.UpdateStatus(ctx, created.ID, "Diagnosing")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDiagnosing, reopened.Status)
	assert.Equal(t, entity.StatusCompleted, f.bus.events[len(f.bus.events)-1].PreviousStatus)
}

func TestLookupReadsThroughCacheAndStatusChangeInvalidates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Jane Doe"))
	require.NoError(t, err)

	_, err = f.svc.Lookup(ctx, created.TrackingID)
	require.NoError(t, err)
	assert.True(t, f.store.has(lookupCacheKey(created.TrackingID)))

	_, err = f.svc.UpdateStatus(ctx, created.ID, "Ready")
	require.NoError(t, err)
	assert.False(t, f.store.has(lookupCacheKey(created.TrackingID)))
}

func TestLookupMatchesOnlyCanonicalNumericIDs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Jane Doe"))
	require.NoError(t, err)
	id := fmt.Sprint(created.ID)

	for _, alias := range []string{"0" + id, "00" + id, "+" + id} {
		_, err := f.svc.Lookup(ctx, alias)
		assert.True(t, errorbank.Is(err, errorbank.KindNotFound), alias)
		assert.False(t, f.store.has(lookupCacheKey(alias)), alias)
	}

	_, err = f.svc.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, f.store.has(lookupCacheKey(id)))

	_, err = f.svc.UpdateStatus(ctx, created.ID, "Ready")
	require.NoError(t, err)
	found, err := f.svc.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReady, found.Status)

	_, err = f.svc.Archive(ctx, created.ID)
	require.NoError(t, err)
	for _, key := range []string{id, "0" + id, created.TrackingID} {
		_, err := f.svc.Lookup(ctx, key)
		assert.True(t, errorbank.Is(err, errorbank.KindNotFound), key)
	}
}

func TestArchiveRollsBackWhenDeleteFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Jane Doe"))
	require.NoError(t, err)

	dbtest.Exec(t, f.conns, `CREATE TRIGGER block_delete BEFORE DELETE ON bookings BEGIN SELECT RAISE(ABORT, 'delete blocked'); END`)

	_, err = f.svc.Archive(ctx, created.ID)
	require.True(t, errorbank.Is(err, errorbank.KindArchiveFailed))
	assert.Equal(t, 500, errorbank.From(err).StatusCode())

	active, err := f.svc.Find(ctx, Query{View: ViewActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)

	archived, err := f.svc.Find(ctx, Query{View: ViewArchived})
	require.NoError(t, err)
	assert.Empty(t, archived)

	dbtest.Exec(t, f.conns, `DROP TRIGGER block_delete`)

	_, err = f.svc.Archive(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.svc.Archive(ctx, created.ID)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	assert.Equal(t, []event.Type{event.BookingCreated, event.BookingArchived}, f.bus.types())
}

func TestFindSearchesBothTables(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var smiths []*entity.Booking
	for _, name := range []string{"John Smith", "Anna Smithson", "Bob Smith"} {
		b, err := f.svc.Create(ctx, input(name))
		require.NoError(t, err)
		smiths = append(smiths, b)
	}
	_, err := f.svc.Create(ctx, input("Mary Jones"))
	require.NoError(t, err)

	_, err = f.svc.Archive(ctx, smiths[1].ID)
	require.NoError(t, err)

	records, err := f.svc.Find(ctx, Query{Text: "Smith"})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, smiths[2].ID, records[0].ID)
	assert.Equal(t, smiths[1].ID, records[1].ID)
	assert.Equal(t, smiths[0].ID, records[2].ID)
	assert.False(t, records[0].Archived())
	assert.True(t, records[1].Archived())
	assert.False(t, records[2].Archived())

	limited, err := f.svc.Find(ctx, Query{Text: "smith", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFindCapsListingsAtFifty(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 52; i++ {
		_, err := f.svc.Create(ctx, input(gofakeit.Name()))
		require.NoError(t, err)
	}

	for _, limit := range []int{0, 50, 51, 500} {
		records, err := f.svc.Find(ctx, Query{Limit: limit})
		require.NoError(t, err)
		assert.Len(t, records, 50, "limit %d", limit)
	}

	records, err := f.svc.Find(ctx, Query{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, records, 5)

	records, err = f.svc.Find(ctx, Query{Text: "@"})
	require.NoError(t, err)
	assert.Len(t, records, 50)
}

func TestCreateRetriesTrackingIDCollisions(t *testing.T) {
	gen := &sequenceGenerator{ids: []string{"TR-1000", "TR-1000", "TR-2000", "TR-1000", "TR-2000", "TR-3000"}}
	f := newFixture(t, gen)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, input("First"))
	require.NoError(t, err)
	assert.Equal(t, "TR-1000", first.TrackingID)

	second, err := f.svc.Create(ctx, input("Second"))
	require.NoError(t, err)
	assert.Equal(t, "TR-2000", second.TrackingID)

	// archived ids stay reserved
	_, err = f.svc.Archive(ctx, first.ID)
	require.NoError(t, err)
	third, err := f.svc.Create(ctx, input("Third"))
	require.NoError(t, err)
	assert.Equal(t, "TR-3000", third.TrackingID)
}

func TestCreateFailsWhenTrackingIDsExhausted(t *testing.T) {
	f := newFixture(t, &sequenceGenerator{ids: []string{"TR-1000"}})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("First"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, input("Second"))
	assert.True(t, errorbank.Is(err, errorbank.KindConflict))
}

func TestCreateReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	in := input("Jane Doe")
	in.IdempotencyKey = "req-1"

	first, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	again, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.TrackingID, again.TrackingID)

	records, err := f.svc.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []event.Type{event.BookingCreated}, f.bus.types())

	_, err = f.store.Add(ctx, idempotencyCacheKey("req-2"), idempotencyPending, time.Hour)
	require.NoError(t, err)
	in.IdempotencyKey = "req-2"
	_, err = f.svc.Create(ctx, in)
	assert.True(t, errorbank.Is(err, errorbank.KindConflict))
}

func TestCreateReleasesIdempotencyKeyOnFailure(t *testing.T) {
	f := newFixture(t, &sequenceGenerator{ids: []string{"TR-1000"}})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("First"))
	require.NoError(t, err)

	in := input("Second")
	in.IdempotencyKey = "req-3"
	_, err = f.svc.Create(ctx, in)
	require.Error(t, err)
	assert.False(t, f.store.has(idempotencyCacheKey("req-3")))
}

func TestParseView(t *testing.T) {
	v, err := ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ViewActive, v)

	v, err = ParseView("Archived")
	require.NoError(t, err)
	assert.Equal(t, ViewArchived, v)

	_, err = ParseView("deleted")
	assert.True(t, errorbank.Is(err, errorbank.KindBadRequest))
}
