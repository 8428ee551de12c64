package models

import "time"

// Merchant is the business that publishes openings. Timezone and the saved
// appointment vocabulary feed the SMS intent extractor.
type Merchant struct {
	ID                  string `gorm:"primaryKey" json:"id"`
	BusinessName        string `gorm:"not null" json:"business_name"`
	Phone               string `gorm:"index" json:"phone"`
	Email               string `gorm:"index" json:"email,omitempty"`
	Timezone            string `gorm:"not null;default:'UTC'" json:"timezone"`
	RequireConfirmation bool   `gorm:"default:false" json:"require_confirmation"`

	// Saved vocabulary for SMS parsing: comma-separated appointment type
	// names and durations (minutes).
	ApptTypes              string `json:"appt_types,omitempty"`
	SavedDurations         string `json:"saved_durations,omitempty"`
	DefaultDurationMinutes int    `gorm:"default:30" json:"default_duration_minutes"`
	OpenHour               int    `gorm:"default:9" json:"open_hour"`
	CloseHour              int    `gorm:"default:17" json:"close_hour"`

	StripeCustomerID string `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the merchant's IANA timezone, falling back to UTC.
func (m *Merchant) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
