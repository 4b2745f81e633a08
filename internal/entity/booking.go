package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultServiceType is applied when a booking is submitted without one.
const DefaultServiceType = "Drop-off"

// BookingDetails holds the columns shared by active and archived bookings.
type BookingDetails struct {
	TrackingID       string    `bun:"tracking_id,notnull" json:"tracking_id"`
	CustomerName     string    `bun:"customer_name,notnull" json:"customer_name"`
	Email            string    `bun:"email,notnull" json:"email"`
	Phone            string    `bun:"phone,notnull" json:"phone"`
	DeviceType       string    `bun:"device_type,notnull" json:"device_type"`
	IssueDescription string    `bun:"issue_description,notnull" json:"issue_description"`
	ServiceType      string    `bun:"service_type,notnull" json:"service_type"`
	Location         string    `bun:"location,notnull" json:"location"`
	BookingDate      string    `bun:"booking_date,notnull" json:"booking_date"`
	BookingTime      string    `bun:"booking_time,notnull" json:"booking_time"`
	Images           []string  `bun:"images,notnull" json:"images"`
	Status           Status    `bun:"status,notnull" json:"status"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Booking is a repair request while it is still being worked on.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID int64 `bun:"id,pk,autoincrement" json:"id"`
	BookingDetails
}

// ArchivedBooking is the immutable copy of a booking after it left the active table.
type ArchivedBooking struct {
	bun.BaseModel `bun:"table:archived_bookings,alias:ab"`

	ID         int64 `bun:"id,pk,autoincrement" json:"id"`
	OriginalID int64 `bun:"original_id,notnull" json:"original_id"`
	BookingDetails
	ArchivedAt time.Time `bun:"archived_at,notnull" json:"archived_at"`
}

// Record is a booking as seen by listings that span both tables.
// ArchivedAt is nil for active bookings.
type Record struct {
	ID int64
	BookingDetails
	ArchivedAt *time.Time
}

// Archived reports whether the record came from the archive table.
func (r Record) Archived() bool {
	return r.ArchivedAt != nil
}

// ActiveRecord wraps an active booking.
func ActiveRecord(b Booking) Record {
	return Record{ID: b.ID, BookingDetails: b.BookingDetails}
}

// ArchivedRecord wraps an archived booking, exposing its original id.
func ArchivedRecord(a ArchivedBooking) Record {
	archivedAt := a.ArchivedAt
	return Record{ID: a.OriginalID, BookingDetails: a.BookingDetails, ArchivedAt: &archivedAt}
}
