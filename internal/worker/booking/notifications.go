package booking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/event"
	"github.com/infinitetech/repairdesk/internal/messaging"
	"github.com/infinitetech/repairdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/infinitetech/repairdesk/worker/booking")

// Module registers the customer notification handler.
var Module = fx.Module("worker_booking",
	fx.Provide(
		fx.Annotate(
			NewNotificationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Notice is a message a customer should receive about their repair.
type Notice struct {
	Kind       string
	TrackingID string
	Email      string
	Subject    string
}

// NoticeFor turns a lifecycle event into the customer notice it warrants.
// ok is false for events customers are not told about.
func NoticeFor(e event.Booking) (notice Notice, ok bool) {
	notice = Notice{TrackingID: e.TrackingID, Email: e.Email}
	switch {
	case e.Type == event.BookingCreated:
		notice.Kind = "confirmation"
		notice.Subject = "We received your repair booking " + e.TrackingID
	case e.Type == event.BookingStatusChanged && e.Status == entity.StatusReady:
		notice.Kind = "ready_for_pickup"
		notice.Subject = "Your device is ready for pickup (" + e.TrackingID + ")"
	case e.Type == event.BookingStatusChanged:
		if e.Status == e.PreviousStatus {
			return Notice{}, false
		}
		notice.Kind = "status_changed"
		notice.Subject = "Repair " + e.TrackingID + " is now " + string(e.Status)
	case e.Type == event.BookingArchived:
		notice.Kind = "archived"
		notice.Subject = "Repair " + e.TrackingID + " has been closed"
	default:
		return Notice{}, false
	}
	return notice, true
}

// NewNotificationHandler logs the customer notice for every booking event on the topic.
func NewNotificationHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.bookings.notify", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("event.type", msg.Header(event.TypeHeader)),
		))
		defer span.End()

		e, err := event.Decode(msg)
		if err != nil {
			logger.Error("failed to decode booking event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		notice, ok := NoticeFor(e)
		if !ok {
			logger.Debug("booking event needs no notice", zap.String("type", string(e.Type)), zap.Int64("id", e.BookingID))
			return nil
		}

		logger.Info("customer notification",
			zap.String("kind", notice.Kind),
			zap.String("tracking_id", notice.TrackingID),
			zap.String("email", notice.Email),
			zap.String("subject", notice.Subject),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
