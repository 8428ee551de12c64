package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openslot/openslot-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM/Postgres.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given GORM connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Merchant operations

func (s *DatabaseStore) GetMerchant(id string) (*models.Merchant, error) {
	var m models.Merchant
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (s *DatabaseStore) GetMerchantByPhone(phone string) (*models.Merchant, error) {
	var m models.Merchant
	if err := s.db.First(&m, "phone = ?", phone).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (s *DatabaseStore) GetMerchantByStripeCustomerID(customerID string) (*models.Merchant, error) {
	var m models.Merchant
	if err := s.db.First(&m, "stripe_customer_id = ?", customerID).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (s *DatabaseStore) CreateMerchant(m *models.Merchant) (*models.Merchant, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.db.Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create merchant: %w", err)
	}
	return m, nil
}

func (s *DatabaseStore) UpdateMerchant(m *models.Merchant) error {
	return s.db.Save(m).Error
}

// Consumer operations

func (s *DatabaseStore) GetConsumer(id string) (*models.Consumer, error) {
	var c models.Consumer
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

func (s *DatabaseStore) GetConsumerByPhone(phone string) (*models.Consumer, error) {
	var c models.Consumer
	if err := s.db.First(&c, "phone = ?", phone).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &c, nil
}

func (s *DatabaseStore) CreateConsumer(c *models.Consumer) (*models.Consumer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.db.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return c, nil
}

// User operations

func (s *DatabaseStore) GetUserByPhone(phone string) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "phone = ?", phone).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (s *DatabaseStore) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "email = ?", email).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &u, nil
}

func (s *DatabaseStore) CreateUser(u *models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := s.db.Create(u).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// Slot operations

func (s *DatabaseStore) CreateSlot(slot *models.Slot) (*models.Slot, error) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.Status == "" {
		slot.Status = models.SlotOpen
	}
	if err := s.db.Create(slot).Error; err != nil {
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}
	return slot, nil
}

func (s *DatabaseStore) GetSlot(id string) (*models.Slot, error) {
	var slot models.Slot
	if err := s.db.First(&slot, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &slot, nil
}

func (s *DatabaseStore) UpdateSlot(slot *models.Slot) error {
	return s.db.Save(slot).Error
}

var claimableStatuses = []models.SlotStatus{models.SlotOpen, models.SlotNotified, models.SlotHeld}

func (s *DatabaseStore) ClaimSlot(id string, target models.SlotStatus, name, phone, consumerID, notes string) (bool, error) {
	res := s.db.Model(&models.Slot{}).
		Where("id = ? AND status IN ?", id, claimableStatuses).
		Updates(map[string]interface{}{
			"status":             target,
			"booked_name":        name,
			"booked_phone":       phone,
			"booked_consumer_id": consumerID,
			"notes":              notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DatabaseStore) TransitionSlot(id string, from []models.SlotStatus, to models.SlotStatus) (bool, error) {
	res := s.db.Model(&models.Slot{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DatabaseStore) RejectSlot(id string) (bool, error) {
	res := s.db.Model(&models.Slot{}).
		Where("id = ? AND status = ?", id, models.SlotPendingConfirmation).
		Updates(map[string]interface{}{
			"status":             models.SlotOpen,
			"booked_name":        "",
			"booked_phone":       "",
			"booked_consumer_id": "",
			"notes":              "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DatabaseStore) SoftDeleteSlot(id string) error {
	return s.db.Delete(&models.Slot{}, "id = ?", id).Error
}

func (s *DatabaseStore) GetUpcomingOpenSlots(merchantID string, after time.Time, limit int) ([]*models.Slot, error) {
	var slots []*models.Slot
	err := s.db.
		Where("merchant_id = ? AND status IN ? AND start_time > ?",
			merchantID, []models.SlotStatus{models.SlotOpen, models.SlotNotified}, after).
		Order("start_time ASC").
		Limit(limit).
		Find(&slots).Error
	return slots, err
}

func (s *DatabaseStore) GetLatestPendingConfirmationSlot(merchantID string) (*models.Slot, error) {
	var slot models.Slot
	err := s.db.
		Where("merchant_id = ? AND status = ?", merchantID, models.SlotPendingConfirmation).
		Order("updated_at DESC").
		First(&slot).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &slot, nil
}

func (s *DatabaseStore) GetLatestSMSSlot(merchantID string) (*models.Slot, error) {
	var slot models.Slot
	err := s.db.
		Where("merchant_id = ? AND source = ?", merchantID, models.SourceSMS).
		Order("created_at DESC").
		First(&slot).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &slot, nil
}

func (s *DatabaseStore) FindOverlappingSlotForStaff(merchantID, staffID string, start, end time.Time) (*models.Slot, error) {
	var slot models.Slot
	err := s.db.
		Where("merchant_id = ? AND staff_id = ? AND start_time < ? AND end_time > ?",
			merchantID, staffID, end, start).
		First(&slot).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &slot, nil
}

func (s *DatabaseStore) FindOverlappingSlot(merchantID string, start, end time.Time) (*models.Slot, error) {
	var slot models.Slot
	err := s.db.
		Where("merchant_id = ? AND start_time < ? AND end_time > ?", merchantID, end, start).
		First(&slot).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &slot, nil
}

// Waitlist operations

func (s *DatabaseStore) CreateNotifyRequest(r *models.NotifyRequest) (*models.NotifyRequest, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.db.Create(r).Error; err != nil {
		return nil, fmt.Errorf("failed to create notify request: %w", err)
	}
	return r, nil
}

func (s *DatabaseStore) GetNotifyRequestsByMerchant(merchantID string) ([]*models.NotifyRequest, error) {
	var requests []*models.NotifyRequest
	err := s.db.
		Where("merchant_id = ?", merchantID).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

func (s *DatabaseStore) DeleteNotifyRequestsByConsumer(consumerID string) (int64, error) {
	res := s.db.Delete(&models.NotifyRequest{}, "consumer_id = ?", consumerID)
	return res.RowsAffected, res.Error
}

// Notification ledger operations

func (s *DatabaseStore) GetNotification(slotID, consumerID string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.First(&n, "slot_id = ? AND consumer_id = ?", slotID, consumerID).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &n, nil
}

func (s *DatabaseStore) CreateNotification(n *models.Notification) error {
	return s.db.Create(n).Error
}

// OTP operations

func (s *DatabaseStore) CreateOTP(o *models.OTP) error {
	return s.db.Create(o).Error
}

func (s *DatabaseStore) GetActiveOTPByPhone(phone string, now time.Time) (*models.OTP, error) {
	var o models.OTP
	err := s.db.
		Where("phone = ? AND verified = ? AND expires_at > ?", phone, false, now).
		Order("created_at DESC").
		First(&o).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &o, nil
}

func (s *DatabaseStore) GetLatestOTPByPhone(phone string) (*models.OTP, error) {
	var o models.OTP
	err := s.db.
		Where("phone = ?", phone).
		Order("created_at DESC").
		First(&o).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &o, nil
}

func (s *DatabaseStore) UpdateOTP(o *models.OTP) error {
	return s.db.Save(o).Error
}

// SMS intake operations

func (s *DatabaseStore) CreateIntake(i *models.SMSIntake) (*models.SMSIntake, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if err := s.db.Create(i).Error; err != nil {
		return nil, fmt.Errorf("failed to create intake: %w", err)
	}
	return i, nil
}

func (s *DatabaseStore) GetActiveIntake(merchantID, phone string, now time.Time) (*models.SMSIntake, error) {
	var i models.SMSIntake
	err := s.db.
		Where("merchant_id = ? AND phone = ? AND resolved = ? AND expires_at > ?",
			merchantID, phone, false, now).
		Order("created_at DESC").
		First(&i).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &i, nil
}

func (s *DatabaseStore) UpdateIntake(i *models.SMSIntake) error {
	return s.db.Save(i).Error
}

// Message log operations

func (s *DatabaseStore) CreateMessageLog(m *models.MessageLog) error {
	return s.db.Create(m).Error
}

func (s *DatabaseStore) GetMessageLogBySID(sid string) (*models.MessageLog, error) {
	var m models.MessageLog
	if err := s.db.First(&m, "message_sid = ?", sid).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &m, nil
}

func (s *DatabaseStore) UpdateMessageLog(m *models.MessageLog) error {
	return s.db.Save(m).Error
}

// Billing operations

func (s *DatabaseStore) UpsertSubscription(sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"merchant_id", "provider_customer_id", "status", "updated_at",
		}),
	}).Create(sub).Error
}

func (s *DatabaseStore) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.First(&sub, "provider_subscription_id = ?", providerSubscriptionID).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &sub, nil
}

func (s *DatabaseStore) CreateBillingEvent(e *models.BillingEvent) error {
	return s.db.Create(e).Error
}

// Pending booking operations

func (s *DatabaseStore) CreatePendingBooking(p *models.PendingBooking) (*models.PendingBooking, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create pending booking: %w", err)
	}
	return p, nil
}

func (s *DatabaseStore) GetLatestPendingBooking(merchantID string) (*models.PendingBooking, error) {
	var p models.PendingBooking
	err := s.db.
		Where("merchant_id = ? AND status = ?", merchantID, models.PendingBookingPending).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (s *DatabaseStore) UpdatePendingBooking(p *models.PendingBooking) error {
	return s.db.Save(p).Error
}
