package booking

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
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

var repoTracer = otel.Tracer("github.com/infinitetech/repairdesk/repository/booking")

// ErrNotFound is returned when no active booking matches.
var ErrNotFound = errors.New("booking not found")

// ErrInvalidStatus is returned when a status outside the workflow is written.
var ErrInvalidStatus = errors.New("invalid booking status")

// ErrDuplicateTrackingID is returned when the tracking id is already taken by an active booking.
var ErrDuplicateTrackingID = errors.New("tracking id already in use")

// Repository encapsulates read/write access for active bookings.
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

// Create persists a new booking using the write connection.
func (r *Repository) Create(ctx context.Context, booking *entity.Booking) error {
	if booking == nil {
		return errors.New("nil booking")
	}
	ctx, span := repoTracer.Start(ctx, "BookingRepository.Create", trace.WithAttributes(attribute.String("booking.tracking_id", booking.TrackingID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(booking).Exec(ctx)
	if database.IsUniqueViolation(err) {
		span.SetStatus(codes.Error, "duplicate tracking id")
		return ErrDuplicateTrackingID
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an active booking by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Booking, error) {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.GetByID", trace.WithAttributes(attribute.Int64("booking.id", id)))
	defer span.End()

	booking := new(entity.Booking)
	err := r.reader.NewSelect().Model(booking).Where("?TableAlias.id = ?", id).Scan(ctx)
	if err := scanErr(span, err); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetByIDForUpdate fetches a booking through the writer, locking the row where the dialect allows.
// Callers are expected to hold a transaction.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Booking, error) {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.GetByIDForUpdate", trace.WithAttributes(attribute.Int64("booking.id", id)))
	defer span.End()

	booking := new(entity.Booking)
	q := r.writer.NewSelect().Model(booking).Where("?TableAlias.id = ?", id)
	if database.SupportsRowLocking(r.writer) {
		q = q.For("UPDATE")
	}
	if err := scanErr(span, q.Scan(ctx)); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetByTrackingIDOrID resolves a tracking id (case-insensitive) or a numeric id.
// A numeric key matches only in its canonical decimal form, so "01" or "+1" never resolve.
func (r *Repository) GetByTrackingIDOrID(ctx context.Context, key string) (*entity.Booking, error) {
	key = strings.TrimSpace(key)
	ctx, span := repoTracer.Start(ctx, "BookingRepository.GetByTrackingIDOrID", trace.WithAttributes(attribute.String("booking.key", key)))
	defer span.End()

	if key == "" {
		return nil, ErrNotFound
	}

	booking := new(entity.Booking)
	q := r.reader.NewSelect().Model(booking).Where("?TableAlias.tracking_id = ?", strings.ToUpper(key))
	if id, err := strconv.ParseInt(key, 10, 64); err == nil && strconv.FormatInt(id, 10) == key {
		q = q.WhereOr("?TableAlias.id = ?", id)
	}
	if err := scanErr(span, q.Limit(1).Scan(ctx)); err != nil {
		return nil, err
	}
	return booking, nil
}

// TrackingIDExists reports whether an active booking already uses trackingID.
func (r *Repository) TrackingIDExists(ctx context.Context, trackingID string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.TrackingIDExists")
	defer span.End()

	exists, err := r.writer.NewSelect().
		Model((*entity.Booking)(nil)).
		Where("?TableAlias.tracking_id = ?", trackingID).
		Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exists failed")
	}
	return exists, err
}

// UpdateStatus sets the status of an active booking and refreshes updated_at.
// The stored updated_at is at, or one tick after the previous value if at is not later.
// It returns the updated booking and the status it held before.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status entity.Status, at time.Time) (*entity.Booking, entity.Status, error) {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("booking.id", id),
		attribute.String("booking.status", string(status)),
	))
	defer span.End()

	if !status.IsValid() {
		return nil, "", ErrInvalidStatus
	}

	var (
		updated  *entity.Booking
		previous entity.Status
	)
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		txRepo := r.WithTx(tx)
		booking, err := txRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		previous = booking.Status
		booking.Status = status
		booking.UpdatedAt = repository.Later(booking.UpdatedAt, at)

		if _, err := tx.NewUpdate().
			Model(booking).
			Column("status", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		updated = booking
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
		}
		return nil, "", err
	}
	return updated, previous, nil
}

// ListRecent returns up to limit active bookings, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]entity.Booking, error) {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.ListRecent")
	defer span.End()

	var bookings []entity.Booking
	err := r.reader.NewSelect().
		Model(&bookings).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Limit(repository.ClampLimit(limit)).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return bookings, nil
}

// SearchByText matches customer name, email and tracking id case-insensitively, newest first.
func (r *Repository) SearchByText(ctx context.Context, text string, limit int) ([]entity.Booking, error) {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.SearchByText", trace.WithAttributes(attribute.String("search.text", text)))
	defer span.End()

	var bookings []entity.Booking
	q := r.reader.NewSelect().Model(&bookings)
	err := repository.MatchText(q, repository.ContainsPattern(text)).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Limit(repository.ClampLimit(limit)).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return bookings, nil
}

// Remove deletes an active booking. Only the archive move should call this.
func (r *Repository) Remove(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "BookingRepository.Remove", trace.WithAttributes(attribute.Int64("booking.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanErr(span trace.Span, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
	}
	return err
}
