package storage

import (
	"errors"
	"time"

	"github.com/openslot/openslot-backend/internal/models"
)

// ErrNotFound is returned by lookups when no matching row exists. Callers
// branch on it with errors.Is; it is an expected outcome, not a failure.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for storage operations. DatabaseStore backs it
// with Postgres; MemoryStore backs it with maps for tests and local dev.
type Store interface {
	// Merchant operations
	GetMerchant(id string) (*models.Merchant, error)
	GetMerchantByPhone(phone string) (*models.Merchant, error)
	GetMerchantByStripeCustomerID(customerID string) (*models.Merchant, error)
	CreateMerchant(m *models.Merchant) (*models.Merchant, error)
	UpdateMerchant(m *models.Merchant) error

	// Consumer operations
	GetConsumer(id string) (*models.Consumer, error)
	GetConsumerByPhone(phone string) (*models.Consumer, error)
	CreateConsumer(c *models.Consumer) (*models.Consumer, error)

	// User operations
	GetUserByPhone(phone string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	CreateUser(u *models.User) (*models.User, error)

	// Slot operations
	CreateSlot(s *models.Slot) (*models.Slot, error)
	GetSlot(id string) (*models.Slot, error)
	UpdateSlot(s *models.Slot) error
	// ClaimSlot conditionally books a slot: the update applies only while the
	// slot is still claimable, so concurrent claims race safely. Returns
	// false when the condition matched zero rows.
	ClaimSlot(id string, target models.SlotStatus, name, phone, consumerID, notes string) (bool, error)
	// TransitionSlot conditionally moves a slot from any of the given
	// statuses to the target status.
	TransitionSlot(id string, from []models.SlotStatus, to models.SlotStatus) (bool, error)
	// RejectSlot returns a pending_confirmation slot to open and clears the
	// claimant fields.
	RejectSlot(id string) (bool, error)
	SoftDeleteSlot(id string) error
	GetUpcomingOpenSlots(merchantID string, after time.Time, limit int) ([]*models.Slot, error)
	GetLatestPendingConfirmationSlot(merchantID string) (*models.Slot, error)
	GetLatestSMSSlot(merchantID string) (*models.Slot, error)
	FindOverlappingSlotForStaff(merchantID, staffID string, start, end time.Time) (*models.Slot, error)
	FindOverlappingSlot(merchantID string, start, end time.Time) (*models.Slot, error)

	// Waitlist operations
	CreateNotifyRequest(r *models.NotifyRequest) (*models.NotifyRequest, error)
	GetNotifyRequestsByMerchant(merchantID string) ([]*models.NotifyRequest, error)
	DeleteNotifyRequestsByConsumer(consumerID string) (int64, error)

	// Notification ledger operations
	GetNotification(slotID, consumerID string) (*models.Notification, error)
	CreateNotification(n *models.Notification) error

	// OTP operations
	CreateOTP(o *models.OTP) error
	GetActiveOTPByPhone(phone string, now time.Time) (*models.OTP, error)
	GetLatestOTPByPhone(phone string) (*models.OTP, error)
	UpdateOTP(o *models.OTP) error

	// SMS intake operations
	CreateIntake(i *models.SMSIntake) (*models.SMSIntake, error)
	GetActiveIntake(merchantID, phone string, now time.Time) (*models.SMSIntake, error)
	UpdateIntake(i *models.SMSIntake) error

	// Message log operations
	CreateMessageLog(m *models.MessageLog) error
	GetMessageLogBySID(sid string) (*models.MessageLog, error)
	UpdateMessageLog(m *models.MessageLog) error

	// Billing operations
	UpsertSubscription(s *models.Subscription) error
	GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error)
	CreateBillingEvent(e *models.BillingEvent) error

	// Pending booking operations
	CreatePendingBooking(p *models.PendingBooking) (*models.PendingBooking, error)
	GetLatestPendingBooking(merchantID string) (*models.PendingBooking, error)
	UpdatePendingBooking(p *models.PendingBooking) error
}
