package models

import (
	"time"

	"gorm.io/gorm"
)

// SlotStatus is the closed set of states an opening can be in.
type SlotStatus string

const (
	SlotOpen                SlotStatus = "open"
	SlotNotified            SlotStatus = "notified"
	SlotHeld                SlotStatus = "held"
	SlotPendingConfirmation SlotStatus = "pending_confirmation"
	SlotBooked              SlotStatus = "booked"
)

// Claimable reports whether a claim attempt is allowed from this status.
// "notified" and "held" are still bookable for claim purposes.
func (s SlotStatus) Claimable() bool {
	return s == SlotOpen || s == SlotNotified || s == SlotHeld
}

// SlotSource records which channel created the opening.
type SlotSource string

const (
	SourceDashboard SlotSource = "dashboard"
	SourceSMS       SlotSource = "sms"
	SourceEmail     SlotSource = "email"
)

// Slot is a short-lived appointment opening a merchant offers.
type Slot struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	MerchantID      string     `gorm:"not null;index" json:"merchant_id"`
	StaffID         *string    `gorm:"index" json:"staff_id,omitempty"`
	StartTime       time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime         time.Time  `gorm:"not null" json:"end_time"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	AppointmentName string     `json:"appointment_name,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Status          SlotStatus `gorm:"type:varchar(32);not null;default:'open';index" json:"status"`
	Source          SlotSource `gorm:"type:varchar(16);not null;default:'dashboard'" json:"source"`

	// Claimant attribution. Typed columns are authoritative; Notes carries a
	// legacy booked_by:..|phone:.. copy for the display layer.
	BookedName       string `json:"booked_name,omitempty"`
	BookedPhone      string `json:"booked_phone,omitempty"`
	BookedConsumerID string `json:"booked_consumer_id,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
