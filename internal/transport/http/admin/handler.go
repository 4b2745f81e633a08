package admin

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/infinitetech/repairdesk/internal/dto"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/presentation/http/response"
	service "github.com/infinitetech/repairdesk/internal/service/booking"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/infinitetech/repairdesk/transport/http/admin")

// Handler exposes the staff dashboard endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an admin Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(g *echo.Group, h *Handler) {
	admin := g.Group("/admin")
	admin.GET("/bookings", h.list)
	admin.PATCH("/bookings/:id/status", h.updateStatus)
	admin.POST("/bookings/:id/archive", h.archive)
	admin.GET("/archived-bookings", h.listArchived)
	admin.GET("/archived-bookings/:id", h.getArchived)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	view, err := service.ParseView(c.QueryParam("view"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return h.find(c, b, view)
}

func (h *Handler) listArchived(c echo.Context) error {
	return h.find(c, response.New(c), service.ViewArchived)
}

func (h *Handler) find(c echo.Context, b *response.Builder, view service.View) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return b.WithError(err).Build()
	}
	q := service.Query{Text: c.QueryParam("q"), View: view, Limit: limit}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.bookings.find", trace.WithAttributes(
		attribute.String("search.view", string(view)),
		attribute.Bool("search.text", q.Text != ""),
	))
	defer span.End()

	records, err := h.svc.Find(ctx, q)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewBookingViews(records)).WithMeta("count", len(records)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.UpdateStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.bookings.updateStatus", trace.WithAttributes(
		attribute.Int64("booking.id", id),
		attribute.String("booking.status", payload.Status),
	))
	defer span.End()

	booking, err := h.svc.UpdateStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewStatusResponse(booking)).WithMessage("Status updated successfully").Build()
}

func (h *Handler) archive(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "admin.bookings.archive", trace.WithAttributes(attribute.Int64("booking.id", id)))
	defer span.End()

	archived, err := h.svc.Archive(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewBookingView(entity.ArchivedRecord(*archived))).WithMessage("Booking archived successfully").Build()
}

func (h *Handler) getArchived(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	archived, err := h.svc.ArchivedByOriginalID(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewBookingView(entity.ArchivedRecord(*archived))).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errorbank.BadRequest("invalid limit", errorbank.WithDetail("limit", raw))
	}
	return limit, nil
}
