package services

// DeliveryStatus is the internal delivery state vocabulary. The carrier's
// fine-grained statuses are reduced to this set before storage.
type DeliveryStatus string

const (
	DeliveryQueued      DeliveryStatus = "queued"
	DeliverySending     DeliveryStatus = "sending"
	DeliverySent        DeliveryStatus = "sent"
	DeliveryDelivered   DeliveryStatus = "delivered"
	DeliveryFailed      DeliveryStatus = "failed"
	DeliveryUndelivered DeliveryStatus = "undelivered"
	DeliveryUnknown     DeliveryStatus = "unknown"
)

// MapCarrierStatus reduces a Twilio message status to the internal enum.
func MapCarrierStatus(carrierStatus string) DeliveryStatus {
	switch carrierStatus {
	case "queued", "accepted", "scheduled":
		return DeliveryQueued
	case "sending":
		return DeliverySending
	case "sent":
		return DeliverySent
	case "delivered", "read":
		return DeliveryDelivered
	case "failed", "canceled":
		return DeliveryFailed
	case "undelivered":
		return DeliveryUndelivered
	}
	return DeliveryUnknown
}

// Terminal reports whether the status is final; transient statuses may still
// be superseded by a later callback.
func (d DeliveryStatus) Terminal() bool {
	switch d {
	case DeliveryDelivered, DeliveryFailed, DeliveryUndelivered:
		return true
	}
	return false
}
