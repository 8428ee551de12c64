package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
	"github.com/openslot/openslot-backend/internal/utils"
)

// Expected, user-facing slot outcomes. Handlers map these to machine-readable
// codes; they are never treated as server failures.
var (
	ErrSlotNotFound      = errors.New("slot_not_found")
	ErrSlotUnavailable   = errors.New("slot_unavailable")
	ErrSlotExpired       = errors.New("slot_expired")
	ErrConsumerCreate    = errors.New("consumer_create_failed")
	ErrBookingUpdate     = errors.New("booking_update_failed")
	ErrUndoNotFound      = errors.New("nothing to undo")
	ErrUndoAlreadyBooked = errors.New("opening already booked")
	ErrUndoWindowExpired = errors.New("undo window expired")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionFacts are the guard facts the transition function checks beyond
// the current status.
type TransitionFacts struct {
	Now       time.Time
	StartTime time.Time
}

// Transition is the single place that decides which slot status changes are
// legal. It returns the new status, or an error naming the rejection.
func Transition(current, requested models.SlotStatus, facts TransitionFacts) (models.SlotStatus, error) {
	switch requested {
	case models.SlotBooked, models.SlotPendingConfirmation:
		if current == models.SlotPendingConfirmation && requested == models.SlotBooked {
			// Merchant approval.
			return models.SlotBooked, nil
		}
		if !current.Claimable() {
			return current, ErrSlotUnavailable
		}
		if !facts.StartTime.After(facts.Now) {
			return current, ErrSlotExpired
		}
		return requested, nil
	case models.SlotOpen:
		// Merchant rejection of a pending claim.
		if current == models.SlotPendingConfirmation {
			return models.SlotOpen, nil
		}
		return current, ErrInvalidTransition
	case models.SlotNotified:
		if current == models.SlotOpen {
			return models.SlotNotified, nil
		}
		return current, ErrInvalidTransition
	case models.SlotHeld:
		if current.Claimable() {
			return models.SlotHeld, nil
		}
		return current, ErrInvalidTransition
	}
	return current, ErrInvalidTransition
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	Slot     *models.Slot
	Consumer *models.Consumer
}

// SlotService is the lifecycle manager for openings: claim, confirm, reject,
// and the SMS undo window.
type SlotService struct {
	store      storage.Store
	undoWindow time.Duration
}

// NewSlotService creates a slot lifecycle service.
func NewSlotService(store storage.Store, undoWindow time.Duration) *SlotService {
	return &SlotService{store: store, undoWindow: undoWindow}
}

// Claim attempts to book a slot for the named claimant. The status write is a
// conditional update, so two concurrent claims resolve to exactly one winner;
// the loser sees ErrSlotUnavailable. The merchant's confirmation policy
// decides the landing status; the requested target can only tighten it.
func (s *SlotService) Claim(slotID, name, phone string, target models.SlotStatus, now time.Time) (*ClaimResult, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	slot, err := s.store.GetSlot(slotID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	if target != models.SlotPendingConfirmation {
		target = models.SlotBooked
	}
	if merchant, err := s.store.GetMerchant(slot.MerchantID); err == nil {
		if merchant.RequireConfirmation {
			target = models.SlotPendingConfirmation
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if _, err := Transition(slot.Status, target, TransitionFacts{Now: now, StartTime: slot.StartTime}); err != nil {
		return nil, err
	}

	consumer, err := s.store.GetConsumerByPhone(normalized)
	if errors.Is(err, storage.ErrNotFound) {
		consumer, err = s.store.CreateConsumer(&models.Consumer{Name: name, Phone: normalized})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConsumerCreate, err)
	}

	notes := fmt.Sprintf("booked_by:%s|phone:%s|consumer_id:%s", name, normalized, consumer.ID)
	ok, err := s.store.ClaimSlot(slotID, target, name, normalized, consumer.ID, notes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBookingUpdate, err)
	}
	if !ok {
		// Lost the race: the conditional update matched zero rows.
		return nil, ErrSlotUnavailable
	}

	slot.Status = target
	slot.BookedName = name
	slot.BookedPhone = normalized
	slot.BookedConsumerID = consumer.ID
	slot.Notes = notes
	return &ClaimResult{Slot: slot, Consumer: consumer}, nil
}

// Approve moves a pending_confirmation slot to booked.
func (s *SlotService) Approve(slotID string) (bool, error) {
	return s.store.TransitionSlot(slotID, []models.SlotStatus{models.SlotPendingConfirmation}, models.SlotBooked)
}

// Reject returns a pending_confirmation slot to open and clears the claimant.
func (s *SlotService) Reject(slotID string) (bool, error) {
	return s.store.RejectSlot(slotID)
}

// UndoLatestSMSSlot soft-deletes the merchant's most recent SMS-created slot,
// but only while it is still open and inside the undo window. Ineligible
// slots get a specific refusal, never a silent no-op.
func (s *SlotService) UndoLatestSMSSlot(merchantID string, now time.Time) (*models.Slot, error) {
	slot, err := s.store.GetLatestSMSSlot(merchantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUndoNotFound
		}
		return nil, err
	}
	if slot.Status != models.SlotOpen && slot.Status != models.SlotNotified {
		return nil, ErrUndoAlreadyBooked
	}
	if now.Sub(slot.CreatedAt) > s.undoWindow {
		return nil, ErrUndoWindowExpired
	}
	if err := s.store.SoftDeleteSlot(slot.ID); err != nil {
		return nil, err
	}
	return slot, nil
}
