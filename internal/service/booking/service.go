package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/cache"
	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/event"
	"github.com/infinitetech/repairdesk/internal/messaging"
	"github.com/infinitetech/repairdesk/internal/observability"
	archiverepo "github.com/infinitetech/repairdesk/internal/repository/archive"
	bookingrepo "github.com/infinitetech/repairdesk/internal/repository/booking"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/infinitetech/repairdesk/service/booking")

var idempotencyPending = []byte("pending")

// Service encapsulates the booking lifecycle: intake, status workflow, archive and search.
type Service struct {
	db        *database.Connections
	bookings  *bookingrepo.Repository
	archive   *archiverepo.Repository
	cache     cache.Store
	publisher messaging.Client
	metrics   *observability.BookingMetrics
	logger    *zap.Logger
	generator TrackingGenerator
	settings  config.Booking
	messaging bool
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Bookings    *bookingrepo.Repository
	Archive     *archiverepo.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client
	Metrics     *observability.BookingMetrics `optional:"true"`
	Generator   TrackingGenerator             `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	generator := p.Generator
	if generator == nil {
		generator = RandomTrackingGenerator{}
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        p.Connections,
		bookings:  p.Bookings,
		archive:   p.Archive,
		cache:     p.Cache,
		publisher: p.Publisher,
		metrics:   p.Metrics,
		logger:    logger,
		generator: generator,
		settings:  p.Config.Booking,
		messaging: p.Config.Messaging.Enabled,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateInput carries a customer's repair request.
type CreateInput struct {
	CustomerName     string
	Email            string
	Phone            string
	DeviceType       string
	IssueDescription string
	ServiceType      string
	Location         string
	BookingDate      string
	BookingTime      string
	Images           []string

	// IdempotencyKey, when set, makes retries of the same request return the first booking.
	IdempotencyKey string
}

func (in CreateInput) missingFields() []string {
	var missing []string
	if strings.TrimSpace(in.CustomerName) == "" {
		missing = append(missing, "customerName")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.DeviceType) == "" {
		missing = append(missing, "deviceType")
	}
	return missing
}

// Create validates a repair request, mints a tracking id and persists the booking.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Booking, error) {
	if missing := in.missingFields(); len(missing) > 0 {
		return nil, errorbank.BadRequest("Missing required fields", errorbank.WithDetail("missing", missing))
	}

	ctx, span := serviceTracer.Start(ctx, "BookingService.Create", trace.WithAttributes(attribute.String("booking.device_type", in.DeviceType)))
	defer span.End()

	idemKey := strings.TrimSpace(in.IdempotencyKey)
	if idemKey != "" {
		replayed, err := s.claimIdempotencyKey(ctx, idemKey)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	booking, err := s.insert(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		if idemKey != "" {
			s.releaseIdempotencyKey(ctx, idemKey)
		}
		return nil, err
	}

	if idemKey != "" {
		s.rememberIdempotencyKey(ctx, idemKey, booking)
	}

	s.logger.Info("booking created",
		zap.Int64("id", booking.ID),
		zap.String("tracking_id", booking.TrackingID),
	)
	s.metrics.Created(ctx, booking.ServiceType)
	s.publish(ctx, event.FromBooking(event.BookingCreated, booking, booking.CreatedAt))

	return booking, nil
}

func (s *Service) insert(ctx context.Context, in CreateInput) (*entity.Booking, error) {
	now := s.now().Truncate(time.Microsecond)
	serviceType := strings.TrimSpace(in.ServiceType)
	if serviceType == "" {
		serviceType = entity.DefaultServiceType
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}

	booking := &entity.Booking{
		BookingDetails: entity.BookingDetails{
			CustomerName:     strings.TrimSpace(in.CustomerName),
			Email:            strings.TrimSpace(in.Email),
			Phone:            strings.TrimSpace(in.Phone),
			DeviceType:       strings.TrimSpace(in.DeviceType),
			IssueDescription: strings.TrimSpace(in.IssueDescription),
			ServiceType:      serviceType,
			Location:         strings.TrimSpace(in.Location),
			BookingDate:      strings.TrimSpace(in.BookingDate),
			BookingTime:      strings.TrimSpace(in.BookingTime),
			Images:           images,
			Status:           entity.StatusBooked,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}

	attempts := s.settings.TrackingAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		trackingID := s.generator.Generate()
		taken, err := s.trackingIDTaken(ctx, trackingID)
		if err != nil {
			return nil, errorbank.Internal("failed to create booking", errorbank.WithCause(err))
		}
		if taken {
			s.logger.Debug("tracking id collision", zap.String("tracking_id", trackingID), zap.Int("attempt", attempt))
			continue
		}

		booking.ID = 0
		booking.TrackingID = trackingID
		err = s.bookings.Create(ctx, booking)
		if errors.Is(err, bookingrepo.ErrDuplicateTrackingID) {
			s.logger.Debug("tracking id taken concurrently", zap.String("tracking_id", trackingID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.logger.Error("booking insert failed", zap.Error(err))
			return nil, errorbank.Internal("Database insertion failed", errorbank.WithCause(err))
		}
		return booking, nil
	}

	return nil, errorbank.Conflict("could not allocate a unique tracking id", errorbank.WithDetail("attempts", attempts))
}

func (s *Service) trackingIDTaken(ctx context.Context, trackingID string) (bool, error) {
	active, err := s.bookings.TrackingIDExists(ctx, trackingID)
	if err != nil || active {
		return active, err
	}
	return s.archive.TrackingIDExists(ctx, trackingID)
}

// Lookup resolves an active booking by tracking id or numeric id, reading through the cache.
func (s *Service) Lookup(ctx context.Context, key string) (*entity.Booking, error) {
	key = normalizeKey(key)
	ctx, span := serviceTracer.Start(ctx, "BookingService.Lookup", trace.WithAttributes(attribute.String("booking.key", key)))
	defer span.End()

	if booking, err := s.getFromCache(ctx, key); err == nil {
		return booking, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("booking cache read failed", zap.String("key", key), zap.Error(err))
	}

	booking, err := s.bookings.GetByTrackingIDOrID(ctx, key)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			return nil, errorbank.NotFound("Repair not found. Check your ID.", errorbank.WithDetail("key", key))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("booking lookup failed", zap.String("key", key), zap.Error(err))
		return nil, errorbank.Internal("Failed to fetch status", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, key, booking); err != nil {
		s.logger.Warn("booking cache write failed", zap.String("key", key), zap.Error(err))
	}

	return booking, nil
}

// UpdateStatus moves an active booking to status. Any workflow status may follow any other.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*entity.Booking, error) {
	next, err := entity.ParseStatus(status)
	if err != nil {
		return nil, errorbank.BadRequest("Invalid status",
			errorbank.WithCause(err),
			errorbank.WithDetail("allowed", entity.Statuses()),
		)
	}

	ctx, span := serviceTracer.Start(ctx, "BookingService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("booking.id", id),
		attribute.String("booking.status", string(next)),
	))
	defer span.End()

	booking, previous, err := s.bookings.UpdateStatus(ctx, id, next, s.now())
	switch {
	case errors.Is(err, bookingrepo.ErrNotFound):
		return nil, errorbank.NotFound("Booking ID not found", errorbank.WithDetail("id", id))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("booking status update failed", zap.Int64("id", id), zap.Error(err))
		return nil, errorbank.Internal("Database update failed", errorbank.WithCause(err))
	}

	s.invalidate(ctx, booking.ID, booking.TrackingID)
	s.logger.Info("booking status updated",
		zap.Int64("id", booking.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(booking.Status)),
	)
	s.metrics.StatusChanged(ctx, string(booking.Status))

	e := event.FromBooking(event.BookingStatusChanged, booking, booking.UpdatedAt)
	e.PreviousStatus = previous
	s.publish(ctx, e)

	return booking, nil
}

func (s *Service) publish(ctx context.Context, e event.Booking) {
	if !s.messaging || s.publisher == nil {
		return
	}
	msg, err := e.Message()
	if err != nil {
		s.logger.Error("encode booking event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish booking event",
			zap.String("type", string(e.Type)),
			zap.Int64("id", e.BookingID),
			zap.Error(err),
		)
	}
}

func lookupCacheKey(key string) string {
	return "bookings:lookup:" + key
}

func idempotencyCacheKey(key string) string {
	return "bookings:idempotency:" + key
}

func (s *Service) getFromCache(ctx context.Context, key string) (*entity.Booking, error) {
	if s.cache == nil || s.settings.LookupCacheTTL <= 0 {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, lookupCacheKey(key))
	if err != nil {
		return nil, err
	}
	var booking entity.Booking
	if err := json.Unmarshal(bytes, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *Service) storeInCache(ctx context.Context, key string, booking *entity.Booking) error {
	if s.cache == nil || booking == nil || s.settings.LookupCacheTTL <= 0 {
		return nil
	}
	bytes, err := json.Marshal(booking)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, lookupCacheKey(key), bytes, s.settings.LookupCacheTTL)
}

func (s *Service) invalidate(ctx context.Context, id int64, trackingID string) {
	if s.cache == nil {
		return
	}
	keys := []string{lookupCacheKey(fmt.Sprint(id)), lookupCacheKey(normalizeKey(trackingID))}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("booking cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}

// claimIdempotencyKey returns the booking created earlier under key, or nil after claiming it.
func (s *Service) claimIdempotencyKey(ctx context.Context, key string) (*entity.Booking, error) {
	if s.cache == nil {
		return nil, nil
	}
	cacheKey := idempotencyCacheKey(key)

	claimed, err := s.cache.Add(ctx, cacheKey, idempotencyPending, s.settings.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("idempotency claim failed; creating without replay protection", zap.Error(err))
		return nil, nil
	}
	if claimed {
		return nil, nil
	}

	stored, err := s.cache.Get(ctx, cacheKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		// claim expired between Add and Get
		return nil, nil
	}
	if err != nil {
		return nil, errorbank.Internal("failed to read idempotency record", errorbank.WithCause(err))
	}
	if string(stored) == string(idempotencyPending) {
		return nil, errorbank.Conflict("a request with this idempotency key is still in progress")
	}

	var booking entity.Booking
	if err := json.Unmarshal(stored, &booking); err != nil {
		return nil, errorbank.Internal("corrupt idempotency record", errorbank.WithCause(err))
	}
	s.logger.Info("booking create replayed", zap.String("idempotency_key", key), zap.Int64("id", booking.ID))
	return &booking, nil
}

func (s *Service) rememberIdempotencyKey(ctx context.Context, key string, booking *entity.Booking) {
	bytes, err := json.Marshal(booking)
	if err == nil {
		err = s.cache.Set(ctx, idempotencyCacheKey(key), bytes, s.settings.IdempotencyTTL)
	}
	if err != nil {
		s.logger.Warn("idempotency record write failed", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (s *Service) releaseIdempotencyKey(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, idempotencyCacheKey(key)); err != nil {
		s.logger.Warn("idempotency release failed", zap.String("idempotency_key", key), zap.Error(err))
	}
}
