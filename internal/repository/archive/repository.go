package archive

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/repository"
)

var repoTracer = otel.Tracer("github.com/infinitetech/repairdesk/repository/archive")

// ErrNotFound is returned when no archived booking matches.
var ErrNotFound = errors.New("archived booking not found")

// ErrAlreadyArchived is returned when the original booking already has an archive row.
var ErrAlreadyArchived = errors.New("booking already archived")

// Repository gives append-only access to archived bookings.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a repository whose reads and writes run inside tx.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// InsertFromActive copies an active booking into the archive, stamped at archivedAt.
// archivedAt is moved forward if it would precede the booking's last update.
func (r *Repository) InsertFromActive(ctx context.Context, booking *entity.Booking, archivedAt time.Time) (*entity.ArchivedBooking, error) {
	if booking == nil {
		return nil, errors.New("nil booking")
	}
	ctx, span := repoTracer.Start(ctx, "ArchiveRepository.InsertFromActive", trace.WithAttributes(
		attribute.Int64("booking.id", booking.ID),
		attribute.String("booking.tracking_id", booking.TrackingID),
	))
	defer span.End()

	archivedAt = archivedAt.UTC().Truncate(repository.Precision)
	if archivedAt.Before(booking.UpdatedAt) {
		archivedAt = booking.UpdatedAt
	}

	archived := &entity.ArchivedBooking{
		OriginalID:     booking.ID,
		BookingDetails: booking.BookingDetails,
		ArchivedAt:     archivedAt,
	}
	if _, err := r.writer.NewInsert().Model(archived).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			span.SetStatus(codes.Error, "already archived")
			return nil, ErrAlreadyArchived
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, err
	}
	return archived, nil
}

// GetByOriginalID fetches the archive row for a booking's former active id.
func (r *Repository) GetByOriginalID(ctx context.Context, originalID int64) (*entity.ArchivedBooking, error) {
	ctx, span := repoTracer.Start(ctx, "ArchiveRepository.GetByOriginalID", trace.WithAttributes(attribute.Int64("booking.original_id", originalID)))
	defer span.End()

	archived := new(entity.ArchivedBooking)
	err := r.reader.NewSelect().Model(archived).Where("?TableAlias.original_id = ?", originalID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return archived, nil
}

// TrackingIDExists reports whether any archived booking carries trackingID.
// It reads the primary so a just-archived id is never handed out again.
func (r *Repository) TrackingIDExists(ctx context.Context, trackingID string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "ArchiveRepository.TrackingIDExists")
	defer span.End()

	exists, err := r.writer.NewSelect().
		Model((*entity.ArchivedBooking)(nil)).
		Where("?TableAlias.tracking_id = ?", trackingID).
		Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exists failed")
	}
	return exists, err
}

// ListRecent returns up to limit archived bookings, most recently archived first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]entity.ArchivedBooking, error) {
	ctx, span := repoTracer.Start(ctx, "ArchiveRepository.ListRecent")
	defer span.End()

	var archived []entity.ArchivedBooking
	err := r.reader.NewSelect().
		Model(&archived).
		OrderExpr("?TableAlias.archived_at DESC, ?TableAlias.id DESC").
		Limit(repository.ClampLimit(limit)).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return archived, nil
}

// SearchByText mirrors the active search over archived rows, newest booking first.
func (r *Repository) SearchByText(ctx context.Context, text string, limit int) ([]entity.ArchivedBooking, error) {
	ctx, span := repoTracer.Start(ctx, "ArchiveRepository.SearchByText", trace.WithAttributes(attribute.String("search.text", text)))
	defer span.End()

	var archived []entity.ArchivedBooking
	q := r.reader.NewSelect().Model(&archived)
	err := repository.MatchText(q, repository.ContainsPattern(text)).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Limit(repository.ClampLimit(limit)).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return archived, nil
}
