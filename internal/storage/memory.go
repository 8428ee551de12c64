package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openslot/openslot-backend/internal/models"
)

// MemoryStore holds all data in memory. It backs tests and the
// USE_MEMORY_STORE development mode; not for production.
type MemoryStore struct {
	mu sync.RWMutex

	merchants       map[string]*models.Merchant
	consumers       map[string]*models.Consumer
	users           map[string]*models.User
	slots           map[string]*models.Slot
	notifyRequests  map[string]*models.NotifyRequest
	notifications   map[string]*models.Notification // keyed slotID|consumerID
	otps            []*models.OTP
	intakes         map[string]*models.SMSIntake
	messageLogs     map[string]*models.MessageLog // keyed by message SID
	subscriptions   map[string]*models.Subscription
	billingEvents   []*models.BillingEvent
	pendingBookings map[string]*models.PendingBooking

	otpCounter     uint
	messageCounter uint
	billingCounter uint
	notifCounter   uint
}

// NewMemoryStore creates a new in-memory storage.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		merchants:       make(map[string]*models.Merchant),
		consumers:       make(map[string]*models.Consumer),
		users:           make(map[string]*models.User),
		slots:           make(map[string]*models.Slot),
		notifyRequests:  make(map[string]*models.NotifyRequest),
		notifications:   make(map[string]*models.Notification),
		intakes:         make(map[string]*models.SMSIntake),
		messageLogs:     make(map[string]*models.MessageLog),
		subscriptions:   make(map[string]*models.Subscription),
		pendingBookings: make(map[string]*models.PendingBooking),
	}
}

// Merchant operations

func (m *MemoryStore) GetMerchant(id string) (*models.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	merchant, ok := m.merchants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return merchant, nil
}

func (m *MemoryStore) GetMerchantByPhone(phone string) (*models.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, merchant := range m.merchants {
		if merchant.Phone == phone {
			return merchant, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetMerchantByStripeCustomerID(customerID string) (*models.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, merchant := range m.merchants {
		if merchant.StripeCustomerID != "" && merchant.StripeCustomerID == customerID {
			return merchant, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateMerchant(merchant *models.Merchant) (*models.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if merchant.ID == "" {
		merchant.ID = uuid.NewString()
	}
	now := time.Now()
	merchant.CreatedAt = now
	merchant.UpdatedAt = now
	m.merchants[merchant.ID] = merchant
	return merchant, nil
}

func (m *MemoryStore) UpdateMerchant(merchant *models.Merchant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	merchant.UpdatedAt = time.Now()
	m.merchants[merchant.ID] = merchant
	return nil
}

// Consumer operations

func (m *MemoryStore) GetConsumer(id string) (*models.Consumer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.consumers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) GetConsumerByPhone(phone string) (*models.Consumer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.consumers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateConsumer(c *models.Consumer) (*models.Consumer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.consumers[c.ID] = c
	return c, nil
}

// User operations

func (m *MemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email != "" && u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateUser(u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = u
	return u, nil
}

// Slot operations

func (m *MemoryStore) CreateSlot(slot *models.Slot) (*models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.Status == "" {
		slot.Status = models.SlotOpen
	}
	now := time.Now()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	m.slots[slot.ID] = slot
	return slot, nil
}

func (m *MemoryStore) GetSlot(id string) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.slots[id]
	if !ok || slot.DeletedAt.Valid {
		return nil, ErrNotFound
	}
	return slot, nil
}

func (m *MemoryStore) UpdateSlot(slot *models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot.UpdatedAt = time.Now()
	m.slots[slot.ID] = slot
	return nil
}

func (m *MemoryStore) ClaimSlot(id string, target models.SlotStatus, name, phone, consumerID, notes string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok || slot.DeletedAt.Valid || !slot.Status.Claimable() {
		return false, nil
	}
	slot.Status = target
	slot.BookedName = name
	slot.BookedPhone = phone
	slot.BookedConsumerID = consumerID
	slot.Notes = notes
	slot.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) TransitionSlot(id string, from []models.SlotStatus, to models.SlotStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok || slot.DeletedAt.Valid {
		return false, nil
	}
	for _, f := range from {
		if slot.Status == f {
			slot.Status = to
			slot.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) RejectSlot(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok || slot.DeletedAt.Valid || slot.Status != models.SlotPendingConfirmation {
		return false, nil
	}
	slot.Status = models.SlotOpen
	slot.BookedName = ""
	slot.BookedPhone = ""
	slot.BookedConsumerID = ""
	slot.Notes = ""
	slot.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) SoftDeleteSlot(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[id]
	if !ok {
		return ErrNotFound
	}
	slot.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

func (m *MemoryStore) GetUpcomingOpenSlots(merchantID string, after time.Time, limit int) ([]*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var slots []*models.Slot
	for _, slot := range m.slots {
		if slot.DeletedAt.Valid || slot.MerchantID != merchantID {
			continue
		}
		if slot.Status != models.SlotOpen && slot.Status != models.SlotNotified {
			continue
		}
		if !slot.StartTime.After(after) {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	if len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

func (m *MemoryStore) GetLatestPendingConfirmationSlot(merchantID string) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Slot
	for _, slot := range m.slots {
		if slot.DeletedAt.Valid || slot.MerchantID != merchantID || slot.Status != models.SlotPendingConfirmation {
			continue
		}
		if latest == nil || slot.UpdatedAt.After(latest.UpdatedAt) {
			latest = slot
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) GetLatestSMSSlot(merchantID string) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Slot
	for _, slot := range m.slots {
		if slot.DeletedAt.Valid || slot.MerchantID != merchantID || slot.Source != models.SourceSMS {
			continue
		}
		if latest == nil || slot.CreatedAt.After(latest.CreatedAt) {
			latest = slot
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) FindOverlappingSlotForStaff(merchantID, staffID string, start, end time.Time) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, slot := range m.slots {
		if slot.DeletedAt.Valid || slot.MerchantID != merchantID {
			continue
		}
		if slot.StaffID == nil || *slot.StaffID != staffID {
			continue
		}
		if slot.StartTime.Before(end) && slot.EndTime.After(start) {
			return slot, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindOverlappingSlot(merchantID string, start, end time.Time) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, slot := range m.slots {
		if slot.DeletedAt.Valid || slot.MerchantID != merchantID {
			continue
		}
		if slot.StartTime.Before(end) && slot.EndTime.After(start) {
			return slot, nil
		}
	}
	return nil, ErrNotFound
}

// Waitlist operations

func (m *MemoryStore) CreateNotifyRequest(r *models.NotifyRequest) (*models.NotifyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.notifyRequests[r.ID] = r
	return r, nil
}

func (m *MemoryStore) GetNotifyRequestsByMerchant(merchantID string) ([]*models.NotifyRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var requests []*models.NotifyRequest
	for _, r := range m.notifyRequests {
		if r.MerchantID == merchantID {
			requests = append(requests, r)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

func (m *MemoryStore) DeleteNotifyRequestsByConsumer(consumerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, r := range m.notifyRequests {
		if r.ConsumerID == consumerID {
			delete(m.notifyRequests, id)
			deleted++
		}
	}
	return deleted, nil
}

// Notification ledger operations

func (m *MemoryStore) GetNotification(slotID, consumerID string) (*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[slotID+"|"+consumerID]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func (m *MemoryStore) CreateNotification(n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifCounter++
	n.ID = m.notifCounter
	n.CreatedAt = time.Now()
	m.notifications[n.SlotID+"|"+n.ConsumerID] = n
	return nil
}

// OTP operations

func (m *MemoryStore) CreateOTP(o *models.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otpCounter++
	o.ID = m.otpCounter
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	m.otps = append(m.otps, o)
	return nil
}

func (m *MemoryStore) GetActiveOTPByPhone(phone string, now time.Time) (*models.OTP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.otps) - 1; i >= 0; i-- {
		o := m.otps[i]
		if o.Phone == phone && !o.Verified && o.ExpiresAt.After(now) {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetLatestOTPByPhone(phone string) (*models.OTP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.otps) - 1; i >= 0; i-- {
		if m.otps[i].Phone == phone {
			return m.otps[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateOTP(o *models.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.UpdatedAt = time.Now()
	for i, existing := range m.otps {
		if existing.ID == o.ID {
			m.otps[i] = o
			return nil
		}
	}
	return ErrNotFound
}

// SMS intake operations

func (m *MemoryStore) CreateIntake(i *models.SMSIntake) (*models.SMSIntake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
	m.intakes[i.ID] = i
	return i, nil
}

func (m *MemoryStore) GetActiveIntake(merchantID, phone string, now time.Time) (*models.SMSIntake, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.SMSIntake
	for _, i := range m.intakes {
		if i.MerchantID != merchantID || i.Phone != phone || i.Resolved || !i.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || i.CreatedAt.After(latest.CreatedAt) {
			latest = i
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) UpdateIntake(i *models.SMSIntake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i.UpdatedAt = time.Now()
	m.intakes[i.ID] = i
	return nil
}

// Message log operations

func (m *MemoryStore) CreateMessageLog(msg *models.MessageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageCounter++
	msg.ID = m.messageCounter
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.MessageSID != "" {
		m.messageLogs[msg.MessageSID] = msg
	}
	return nil
}

func (m *MemoryStore) GetMessageLogBySID(sid string) (*models.MessageLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messageLogs[sid]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

func (m *MemoryStore) UpdateMessageLog(msg *models.MessageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.UpdatedAt = time.Now()
	if msg.MessageSID != "" {
		m.messageLogs[msg.MessageSID] = msg
	}
	return nil
}

// Billing operations

func (m *MemoryStore) UpsertSubscription(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.subscriptions[sub.ProviderSubscriptionID]; ok {
		existing.MerchantID = sub.MerchantID
		existing.ProviderCustomerID = sub.ProviderCustomerID
		existing.Status = sub.Status
		existing.UpdatedAt = now
		return nil
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	m.subscriptions[sub.ProviderSubscriptionID] = sub
	return nil
}

func (m *MemoryStore) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[providerSubscriptionID]
	if !ok {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (m *MemoryStore) CreateBillingEvent(e *models.BillingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.billingCounter++
	e.ID = m.billingCounter
	e.CreatedAt = time.Now()
	m.billingEvents = append(m.billingEvents, e)
	return nil
}

// Pending booking operations

func (m *MemoryStore) CreatePendingBooking(p *models.PendingBooking) (*models.PendingBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PendingBookingPending
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.pendingBookings[p.ID] = p
	return p, nil
}

func (m *MemoryStore) GetLatestPendingBooking(merchantID string) (*models.PendingBooking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.PendingBooking
	for _, p := range m.pendingBookings {
		if p.MerchantID != merchantID || p.Status != models.PendingBookingPending {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) UpdatePendingBooking(p *models.PendingBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	m.pendingBookings[p.ID] = p
	return nil
}
