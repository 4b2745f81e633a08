package booking

import (
	"context"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/repository"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

// View selects which table an unfiltered listing reads.
type View string

const (
	ViewActive   View = "active"
	ViewArchived View = "archived"
)

// ParseView maps a query value onto a View, defaulting to active.
func ParseView(raw string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ViewActive:
		return ViewActive, nil
	case ViewArchived:
		return ViewArchived, nil
	default:
		return "", errorbank.BadRequest("Invalid view", errorbank.WithDetail("allowed", []View{ViewActive, ViewArchived}))
	}
}

// Query describes an admin listing or search.
type Query struct {
	Text  string
	View  View
	Limit int
}

// Find lists recent bookings of one view, or searches both tables when Text is set.
func (s *Service) Find(ctx context.Context, q Query) ([]entity.Record, error) {
	text := strings.TrimSpace(q.Text)
	limit := repository.ClampLimit(q.Limit)

	ctx, span := serviceTracer.Start(ctx, "BookingService.Find", trace.WithAttributes(
		attribute.String("search.text", text),
		attribute.String("search.view", string(q.View)),
		attribute.Int("search.limit", limit),
	))
	defer span.End()

	var (
		records []entity.Record
		err     error
	)
	switch {
	case text != "":
		records, err = s.search(ctx, text, limit)
	case q.View == ViewArchived:
		records, err = s.listArchived(ctx, limit)
	default:
		records, err = s.listActive(ctx, limit)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find failed")
		s.logger.Error("booking find failed", zap.String("text", text), zap.Error(err))
		return nil, errorbank.Internal("Failed to fetch bookings", errorbank.WithCause(err))
	}
	return records, nil
}

func (s *Service) listActive(ctx context.Context, limit int) ([]entity.Record, error) {
	bookings, err := s.bookings.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	records := make([]entity.Record, 0, len(bookings))
	for _, b := range bookings {
		records = append(records, entity.ActiveRecord(b))
	}
	return records, nil
}

func (s *Service) listArchived(ctx context.Context, limit int) ([]entity.Record, error) {
	archived, err := s.archive.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	records := make([]entity.Record, 0, len(archived))
	for _, a := range archived {
		records = append(records, entity.ArchivedRecord(a))
	}
	return records, nil
}

// search reads both tables from one snapshot so a booking moving to the archive
// concurrently is seen exactly once.
func (s *Service) search(ctx context.Context, text string, limit int) ([]entity.Record, error) {
	var records []entity.Record
	err := s.db.Reader.RunInTx(ctx, database.SnapshotTxOptions(s.db.Reader), func(ctx context.Context, tx bun.Tx) error {
		active, err := s.bookings.WithTx(tx).SearchByText(ctx, text, limit)
		if err != nil {
			return err
		}
		archived, err := s.archive.WithTx(tx).SearchByText(ctx, text, limit)
		if err != nil {
			return err
		}

		records = make([]entity.Record, 0, len(active)+len(archived))
		for _, b := range active {
			records = append(records, entity.ActiveRecord(b))
		}
		for _, a := range archived {
			records = append(records, entity.ArchivedRecord(a))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortRecords(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// sortRecords orders newest booking first, active before archived, then by id descending.
func sortRecords(records []entity.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Archived() != b.Archived() {
			return !a.Archived()
		}
		return a.ID > b.ID
	})
}
