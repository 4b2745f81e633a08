package dto

import (
	"time"

	"github.com/infinitetech/repairdesk/internal/entity"
)

// CreateBookingRequest is the customer's booking form.
type CreateBookingRequest struct {
	CustomerName     string   `json:"customerName"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
	DeviceType       string   `json:"deviceType"`
	IssueDescription string   `json:"issueDescription"`
	ServiceType      string   `json:"serviceType"`
	Address          string   `json:"address"`
	Location         string   `json:"location"`
	BookingDate      string   `json:"bookingDate"`
	BookingTime      string   `json:"bookingTime"`
	Images           []string `json:"images"`
}

// PickupLocation returns the drop-off location, accepting either form field.
func (r CreateBookingRequest) PickupLocation() string {
	if r.Location != "" {
		return r.Location
	}
	return r.Address
}

// CreateBookingResponse acknowledges a new booking.
type CreateBookingResponse struct {
	TrackingID string `json:"trackingId"`
	DBID       int64  `json:"dbId"`
}

// TrackingResponse is what a customer sees when checking on a repair.
type TrackingResponse struct {
	Found      bool          `json:"found"`
	TrackingID string        `json:"trackingId"`
	Customer   string        `json:"customer"`
	Device     string        `json:"device"`
	Status     entity.Status `json:"status"`
	Date       time.Time     `json:"date"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// NewTrackingResponse maps an active booking to the customer view.
func NewTrackingResponse(b *entity.Booking) TrackingResponse {
	return TrackingResponse{
		Found:      true,
		TrackingID: b.TrackingID,
		Customer:   b.CustomerName,
		Device:     b.DeviceType,
		Status:     b.Status,
		Date:       b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// UpdateStatusRequest carries the staff-selected status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// StatusResponse is returned after a status change.
type StatusResponse struct {
	ID         int64         `json:"id"`
	TrackingID string        `json:"tracking_id"`
	Status     entity.Status `json:"status"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewStatusResponse maps an updated booking.
func NewStatusResponse(b *entity.Booking) StatusResponse {
	return StatusResponse{
		ID:         b.ID,
		TrackingID: b.TrackingID,
		Status:     b.Status,
		UpdatedAt:  b.UpdatedAt,
	}
}

// BookingView is one row of an admin listing. ArchivedAt is null for active bookings.
type BookingView struct {
	ID               int64         `json:"id"`
	TrackingID       string        `json:"tracking_id"`
	CustomerName     string        `json:"customer_name"`
	Email            string        `json:"email"`
	Phone            string        `json:"phone"`
	DeviceType       string        `json:"device_type"`
	IssueDescription string        `json:"issue_description"`
	ServiceType      string        `json:"service_type"`
	Location         string        `json:"location"`
	BookingDate      string        `json:"booking_date"`
	BookingTime      string        `json:"booking_time"`
	Status           entity.Status `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ArchivedAt       *time.Time    `json:"archived_at"`
}

// NewBookingView maps a listing record.
func NewBookingView(r entity.Record) BookingView {
	return BookingView{
		ID:               r.ID,
		TrackingID:       r.TrackingID,
		CustomerName:     r.CustomerName,
		Email:            r.Email,
		Phone:            r.Phone,
		DeviceType:       r.DeviceType,
		IssueDescription: r.IssueDescription,
		ServiceType:      r.ServiceType,
		Location:         r.Location,
		BookingDate:      r.BookingDate,
		BookingTime:      r.BookingTime,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ArchivedAt:       r.ArchivedAt,
	}
}

// NewBookingViews maps a listing.
func NewBookingViews(records []entity.Record) []BookingView {
	views := make([]BookingView, 0, len(records))
	for _, r := range records {
		views = append(views, NewBookingView(r))
	}
	return views
}
