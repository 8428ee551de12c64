package models

import "time"

// SMSIntake threads a multi-turn SMS dialog: the original inbound message, the
// partially parsed intent, and the pending clarification question. Stored as a
// row so handlers stay stateless across invocations.
type SMSIntake struct {
	ID              string `gorm:"primaryKey" json:"id"`
	MerchantID      string `gorm:"not null;index:idx_intake_merchant_phone" json:"merchant_id"`
	Phone           string `gorm:"not null;index:idx_intake_merchant_phone" json:"phone"`
	OriginalMessage string `json:"original_message"`
	PartialIntent   string `json:"partial_intent,omitempty"` // JSON
	Question        string `json:"question,omitempty"`

	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Resolved  bool      `gorm:"default:false" json:"resolved"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
