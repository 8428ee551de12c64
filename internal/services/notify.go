package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
	"github.com/openslot/openslot-backend/internal/utils"
)

// NotifyResult is the aggregate outcome of a fan-out. Individual recipient
// failures lower Notified but never fail the batch.
type NotifyResult struct {
	Success  bool `json:"success"`
	Notified int  `json:"notified"`
	Total    int  `json:"total"`
}

// NotifyService fans a newly published opening out to the merchant's
// waitlist: one signed link, one message per unique phone, one ledger row per
// send.
type NotifyService struct {
	store   storage.Store
	sms     Messenger
	signer  *LinkSigner
	baseURL string
}

// NewNotifyService creates a notification dispatcher.
func NewNotifyService(store storage.Store, sms Messenger, signer *LinkSigner, baseURL string) *NotifyService {
	return &NotifyService{store: store, sms: sms, signer: signer, baseURL: baseURL}
}

type recipient struct {
	consumerID string
	phone      string
}

// NotifyWaitlist sends the opening to every unique waitlisted phone. The
// Notification ledger makes the fan-out idempotent: an existing (slot,
// consumer) row means that recipient was already handled, and nothing more is
// sent on retry.
func (s *NotifyService) NotifyWaitlist(slotID, merchantID string) (*NotifyResult, error) {
	slot, err := s.store.GetSlot(slotID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("slot %s not found", slotID)
		}
		return nil, err
	}

	merchant, err := s.store.GetMerchant(merchantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("merchant %s not found", merchantID)
		}
		return nil, err
	}

	requests, err := s.store.GetNotifyRequestsByMerchant(merchantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	loc := merchant.Location()

	// Dedupe by normalized phone; the first entry encountered wins the
	// attribution. Entries with expired time-range filters are skipped.
	seen := make(map[string]bool)
	var recipients []recipient
	for _, req := range requests {
		if !req.TimeRangeActive(now, loc) {
			continue
		}
		consumer, err := s.store.GetConsumer(req.ConsumerID)
		if err != nil {
			log.Printf("⚠️  Waitlist entry %s references missing consumer %s", req.ID, req.ConsumerID)
			continue
		}
		phone, err := utils.NormalizePhone(consumer.Phone)
		if err != nil {
			log.Printf("⚠️  Skipping consumer %s: %v", consumer.ID, err)
			continue
		}
		if seen[phone] {
			continue
		}
		seen[phone] = true
		recipients = append(recipients, recipient{consumerID: consumer.ID, phone: phone})
	}

	link := s.signer.ClaimURL(s.baseURL, slot.ID, slot.StartTime, merchant.Timezone, slot.DurationMinutes)
	when := slot.StartTime.In(loc).Format("Monday, Jan 2 at 3:04 PM")
	body := fmt.Sprintf("%s has an opening %s (%d min). First come, first served: %s",
		merchant.BusinessName, when, slot.DurationMinutes, link)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notified int
	)
	for _, r := range recipients {
		wg.Add(1)
		go func(r recipient) {
			defer wg.Done()
			if s.notifyOne(slot.ID, r, body) {
				mu.Lock()
				notified++
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	if notified > 0 {
		if _, err := s.store.TransitionSlot(slot.ID, []models.SlotStatus{models.SlotOpen}, models.SlotNotified); err != nil {
			log.Printf("⚠️  Failed to mark slot %s notified: %v", slot.ID, err)
		}
	}

	return &NotifyResult{Success: true, Notified: notified, Total: len(requests)}, nil
}

// notifyOne handles a single recipient: ledger check, send, then record.
// Returns true only for a fresh successful send, so retries never
// double-count. A ledger write failure after a successful send still counts
// as sent; re-sending over a failed audit write would double-text the person.
func (s *NotifyService) notifyOne(slotID string, r recipient, body string) bool {
	if _, err := s.store.GetNotification(slotID, r.consumerID); err == nil {
		return false
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("⚠️  Ledger check failed for consumer %s: %v", r.consumerID, err)
		return false
	}

	sid, err := s.sms.SendSMS(r.phone, body)
	if err != nil {
		log.Printf("❌ Failed to notify %s: %v", r.phone, err)
		return false
	}

	if err := s.store.CreateNotification(&models.Notification{
		SlotID:     slotID,
		ConsumerID: r.consumerID,
		MessageSID: sid,
	}); err != nil {
		log.Printf("⚠️  Notification record insert failed for consumer %s (message already sent): %v", r.consumerID, err)
	}

	if err := s.store.CreateMessageLog(&models.MessageLog{
		MessageSID: sid,
		Direction:  models.DirectionOutbound,
		Body:       body,
		ToNumber:   r.phone,
		Status:     string(DeliveryQueued),
	}); err != nil {
		log.Printf("⚠️  Message log insert failed for %s: %v", r.phone, err)
	}

	return true
}
