package models

import "time"

// Subscription mirrors the payment provider's view of a merchant's plan.
// Upserts are keyed on ProviderSubscriptionID so webhook retries are
// idempotent.
type Subscription struct {
	ID                     string `gorm:"primaryKey" json:"id"`
	MerchantID             string `gorm:"not null;index" json:"merchant_id"`
	Provider               string `gorm:"not null;default:'stripe'" json:"provider"`
	ProviderCustomerID     string `gorm:"index" json:"provider_customer_id"`
	ProviderSubscriptionID string `gorm:"uniqueIndex" json:"provider_subscription_id"`
	Status                 string `gorm:"not null" json:"status"` // active, cancelled, suspended, past_due

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BillingEvent is the append-only audit ledger for every provider webhook,
// written whether or not processing succeeded.
type BillingEvent struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Provider   string `gorm:"not null" json:"provider"`
	EventType  string `gorm:"not null;index" json:"event_type"`
	EventID    string `gorm:"index" json:"event_id"`
	MerchantID string `gorm:"index" json:"merchant_id,omitempty"`
	RawPayload string `gorm:"type:text" json:"raw_payload"`
	Processed  bool   `json:"processed"`
	Error      string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
