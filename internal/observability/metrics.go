package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const bookingMeterName = "github.com/infinitetech/repairdesk/booking"

// BookingMetrics records booking lifecycle counters.
type BookingMetrics struct {
	created         metric.Int64Counter
	statusChanges   metric.Int64Counter
	archived        metric.Int64Counter
	archiveFailures metric.Int64Counter
}

// NewBookingMetrics registers the booking instruments on the manager's meter.
func NewBookingMetrics(mgr *Manager) (*BookingMetrics, error) {
	meter := mgr.Meter(bookingMeterName)

	created, err := meter.Int64Counter("bookings.created",
		metric.WithDescription("Bookings accepted from customers."))
	if err != nil {
		return nil, err
	}
	statusChanges, err := meter.Int64Counter("bookings.status_changes",
		metric.WithDescription("Status updates applied to active bookings."))
	if err != nil {
		return nil, err
	}
	archived, err := meter.Int64Counter("bookings.archived",
		metric.WithDescription("Bookings moved to the archive."))
	if err != nil {
		return nil, err
	}
	archiveFailures, err := meter.Int64Counter("bookings.archive_failures",
		metric.WithDescription("Archive moves rolled back because of a storage error."))
	if err != nil {
		return nil, err
	}

	return &BookingMetrics{
		created:         created,
		statusChanges:   statusChanges,
		archived:        archived,
		archiveFailures: archiveFailures,
	}, nil
}

// Created counts a new booking.
func (m *BookingMetrics) Created(ctx context.Context, serviceType string) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("service_type", serviceType)))
}

// StatusChanged counts a status update to the given status.
func (m *BookingMetrics) StatusChanged(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// Archived counts a committed archive move.
func (m *BookingMetrics) Archived(ctx context.Context) {
	if m == nil {
		return
	}
	m.archived.Add(ctx, 1)
}

// ArchiveFailed counts a rolled back archive move.
func (m *BookingMetrics) ArchiveFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.archiveFailures.Add(ctx, 1)
}
