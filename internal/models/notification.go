package models

import "time"

// Notification is the de-duplication ledger for the fan-out: one row per
// (slot, consumer) pair that has actually been sent a message.
type Notification struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SlotID     string `gorm:"not null;uniqueIndex:idx_slot_consumer" json:"slot_id"`
	ConsumerID string `gorm:"not null;uniqueIndex:idx_slot_consumer" json:"consumer_id"`
	MessageSID string `json:"message_sid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
