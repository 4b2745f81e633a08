package booking

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/infinitetech/repairdesk/internal/dto"
	"github.com/infinitetech/repairdesk/internal/presentation/http/response"
	service "github.com/infinitetech/repairdesk/internal/service/booking"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

// IdempotencyHeader lets clients retry a create without minting a second booking.
const IdempotencyHeader = "Idempotency-Key"

var httpTracer = otel.Tracer("github.com/infinitetech/repairdesk/transport/http/booking")

// Handler exposes the customer-facing booking endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a booking Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	bookings := g.Group("/bookings")
	bookings.POST("", h.create)
	bookings.GET("/:key", h.lookup)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateBookingRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "bookings.create", trace.WithAttributes(
		attribute.String("booking.device_type", payload.DeviceType),
	))
	defer span.End()

	booking, err := h.svc.Create(ctx, service.CreateInput{
		CustomerName:     payload.CustomerName,
		Email:            payload.Email,
		Phone:            payload.Phone,
		DeviceType:       payload.DeviceType,
		IssueDescription: payload.IssueDescription,
		ServiceType:      payload.ServiceType,
		Location:         payload.PickupLocation(),
		BookingDate:      payload.BookingDate,
		BookingTime:      payload.BookingTime,
		Images:           payload.Images,
		IdempotencyKey:   c.Request().Header.Get(IdempotencyHeader),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.
		WithData(dto.CreateBookingResponse{TrackingID: booking.TrackingID, DBID: booking.ID}).
		WithMessage("Booking confirmed successfully").
		Build()
}

func (h *Handler) lookup(c echo.Context) error {
	b := response.New(c)
	key := c.Param("key")

	ctx, span := httpTracer.Start(c.Request().Context(), "bookings.lookup", trace.WithAttributes(attribute.String("booking.key", key)))
	defer span.End()

	booking, err := h.svc.Lookup(ctx, key)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewTrackingResponse(booking)).Build()
}
