package models

import "time"

// MessageDirection tags a MessageLog row as inbound or outbound.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageLog is the append-only record of every SMS in either direction.
// Delivery webhooks map back to a row via MessageSID.
type MessageLog struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	MessageSID string           `gorm:"index" json:"message_sid"`
	Direction  MessageDirection `gorm:"type:varchar(16);not null" json:"direction"`
	Body       string           `json:"body"`
	FromNumber string           `json:"from_number"`
	ToNumber   string           `json:"to_number"`

	Status       string `json:"status,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
