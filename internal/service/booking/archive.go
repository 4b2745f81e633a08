package booking

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/event"
	archiverepo "github.com/infinitetech/repairdesk/internal/repository/archive"
	bookingrepo "github.com/infinitetech/repairdesk/internal/repository/booking"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

// Archive moves an active booking into the archive table. Either the booking ends up in
// exactly one table after the call, or nothing changed.
func (s *Service) Archive(ctx context.Context, id int64) (*entity.ArchivedBooking, error) {
	ctx, span := serviceTracer.Start(ctx, "BookingService.Archive", trace.WithAttributes(attribute.Int64("booking.id", id)))
	defer span.End()

	var archived *entity.ArchivedBooking
	err := s.db.Writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		bookings := s.bookings.WithTx(tx)

		booking, err := bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		archived, err = s.archive.WithTx(tx).InsertFromActive(ctx, booking, s.now())
		if err != nil {
			return err
		}
		return bookings.Remove(ctx, id)
	})

	switch {
	case errors.Is(err, bookingrepo.ErrNotFound), errors.Is(err, archiverepo.ErrAlreadyArchived):
		return nil, errorbank.NotFound("Booking not found or already archived", errorbank.WithDetail("id", id))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive rolled back")
		s.metrics.ArchiveFailed(ctx)
		s.logger.Error("booking archive failed", zap.Int64("id", id), zap.Error(err))
		return nil, errorbank.ArchiveFailed("Archive failed", errorbank.WithCause(err))
	}

	s.invalidate(ctx, id, archived.TrackingID)
	s.logger.Info("booking archived",
		zap.Int64("id", id),
		zap.String("tracking_id", archived.TrackingID),
		zap.Time("archived_at", archived.ArchivedAt),
	)
	s.metrics.Archived(ctx)

	booking := &entity.Booking{ID: archived.OriginalID, BookingDetails: archived.BookingDetails}
	s.publish(ctx, event.FromBooking(event.BookingArchived, booking, archived.ArchivedAt))

	return archived, nil
}

// ArchivedByOriginalID returns the archive row for a booking that used to be active under id.
func (s *Service) ArchivedByOriginalID(ctx context.Context, id int64) (*entity.ArchivedBooking, error) {
	archived, err := s.archive.GetByOriginalID(ctx, id)
	if errors.Is(err, archiverepo.ErrNotFound) {
		return nil, errorbank.NotFound("Archived booking not found", errorbank.WithDetail("id", id))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to fetch archived booking", errorbank.WithCause(err))
	}
	return archived, nil
}
