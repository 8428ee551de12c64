package models

import "time"

// PendingBookingStatus tracks an email-originated opening awaiting the
// merchant's YES/NO reply.
type PendingBookingStatus string

const (
	PendingBookingPending  PendingBookingStatus = "pending"
	PendingBookingApproved PendingBookingStatus = "approved"
	PendingBookingDenied   PendingBookingStatus = "denied"
)

// PendingBooking holds an opening proposed by email until the merchant
// approves it over SMS, at which point it is materialized as a Slot.
type PendingBooking struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	MerchantID      string    `gorm:"not null;index" json:"merchant_id"`
	StaffID         *string   `json:"staff_id,omitempty"`
	StartTime       time.Time `gorm:"not null" json:"start_time"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	AppointmentName string    `json:"appointment_name,omitempty"`

	Status PendingBookingStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
