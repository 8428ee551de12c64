package models

import "time"

// Consumer is a waitlisted person, identified primarily by normalized phone.
type Consumer struct {
	ID     string  `gorm:"primaryKey" json:"id"`
	Name   string  `json:"name"`
	Phone  string  `gorm:"uniqueIndex;not null" json:"phone"`
	UserID *string `gorm:"index" json:"user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an authenticated identity minted after OTP verification.
type User struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Phone string `gorm:"index" json:"phone"`
	Email string `gorm:"index" json:"email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
