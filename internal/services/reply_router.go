package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
)

const (
	optOutReply = "You've been unsubscribed and won't receive any more opening alerts. Reply START to re-subscribe."
	optInReply  = "Welcome back! You'll hear from us the next time a business you follow posts an opening."
	usageReply  = "Text me an opening like \"haircut tomorrow 3pm 45 min\". Reply UNDO within 5 minutes to remove the last one, CONFIRM to approve a pending booking, or STOP to unsubscribe."
)

// ReplyRouter inspects inbound SMS for reserved keywords and short-circuits
// to subscription or approval handling before the command interpreter runs.
type ReplyRouter struct {
	store storage.Store
	flow  *FlowService
	slots *SlotService
	sms   Messenger
}

// NewReplyRouter creates the inbound SMS router.
func NewReplyRouter(store storage.Store, flow *FlowService, slots *SlotService, sms Messenger) *ReplyRouter {
	return &ReplyRouter{store: store, flow: flow, slots: slots, sms: sms}
}

// HandleInbound routes one validated inbound message. from must already be
// normalized. The returned string is the conversational reply.
func (r *ReplyRouter) HandleInbound(from, body string, now time.Time) (string, error) {
	msg := strings.ToLower(strings.TrimSpace(body))

	switch msg {
	case "stop", "unsubscribe", "cancel":
		if reply, handled := r.handleOptOut(from); handled {
			return reply, nil
		}
		// A merchant texting "cancel" means undo, not opt-out.
		if msg == "cancel" {
			if merchant, err := r.store.GetMerchantByPhone(from); err == nil {
				return r.flow.HandleUndo(merchant, now), nil
			}
		}
		return optOutReply, nil

	case "start", "resubscribe":
		return optInReply, nil

	case "yes", "y", "no", "n":
		return r.handlePendingDecision(from, msg == "yes" || msg == "y", now)

	case "confirm", "approve":
		return r.handleConfirm(from, now)

	case "help", "commands":
		return usageReply, nil
	}

	merchant, err := r.store.GetMerchantByPhone(from)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return usageReply, nil
		}
		return "", err
	}

	if isUndoRequest(msg) {
		return r.flow.HandleUndo(merchant, now), nil
	}

	return r.flow.HandleMerchantMessage(merchant, from, body, now)
}

// handleOptOut bulk-deletes every waitlist entry for the sender's consumer
// identity. A later START never recreates them.
func (r *ReplyRouter) handleOptOut(from string) (string, bool) {
	consumer, err := r.store.GetConsumerByPhone(from)
	if err != nil {
		return "", false
	}
	deleted, err := r.store.DeleteNotifyRequestsByConsumer(consumer.ID)
	if err != nil {
		log.Printf("❌ Failed to delete waitlist entries for consumer %s: %v", consumer.ID, err)
		return "", false
	}
	log.Printf("📴 Opt-out: removed %d waitlist entries for %s", deleted, from)
	return optOutReply, true
}

// handlePendingDecision resolves the sender as a merchant and applies YES/NO
// to their most recent pending email-originated opening request.
func (r *ReplyRouter) handlePendingDecision(from string, approved bool, now time.Time) (string, error) {
	merchant, err := r.store.GetMerchantByPhone(from)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return usageReply, nil
		}
		return "", err
	}

	pending, err := r.store.GetLatestPendingBooking(merchant.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "There's no pending opening request to respond to.", nil
		}
		return "", err
	}

	if !approved {
		pending.Status = models.PendingBookingDenied
		if err := r.store.UpdatePendingBooking(pending); err != nil {
			return "", err
		}
		return "Okay, that opening request was declined.", nil
	}

	loc := merchant.Location()
	end := pending.StartTime.Add(time.Duration(pending.DurationMinutes) * time.Minute)
	if existing, err := r.store.FindOverlappingSlot(merchant.ID, pending.StartTime, end); err == nil {
		return fmt.Sprintf("⚠️ Can't create it: that time collides with %s at %s.",
			displayName(existing), existing.StartTime.In(loc).Format("3:04 PM")), nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	slot := &models.Slot{
		MerchantID:      merchant.ID,
		StaffID:         pending.StaffID,
		StartTime:       pending.StartTime,
		EndTime:         end,
		DurationMinutes: pending.DurationMinutes,
		AppointmentName: pending.AppointmentName,
		Status:          models.SlotOpen,
		Source:          models.SourceEmail,
	}
	if _, err := r.store.CreateSlot(slot); err != nil {
		return "", err
	}
	pending.Status = models.PendingBookingApproved
	if err := r.store.UpdatePendingBooking(pending); err != nil {
		log.Printf("⚠️  Failed to mark pending booking %s approved: %v", pending.ID, err)
	}

	return fmt.Sprintf("✅ Opening created for %s.", formatWhen(slot.StartTime, now, loc)), nil
}

// handleConfirm books the merchant's most recent pending_confirmation slot
// and notifies both the claimant and the merchant.
func (r *ReplyRouter) handleConfirm(from string, now time.Time) (string, error) {
	merchant, err := r.store.GetMerchantByPhone(from)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return usageReply, nil
		}
		return "", err
	}

	slot, err := r.store.GetLatestPendingConfirmationSlot(merchant.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "There's no booking waiting for confirmation.", nil
		}
		return "", err
	}

	ok, err := r.slots.Approve(slot.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "That booking was already resolved.", nil
	}

	when := formatWhen(slot.StartTime, now, merchant.Location())
	if slot.BookedPhone != "" {
		confirmation := fmt.Sprintf("🎉 You're booked! %s confirmed your appointment %s.", merchant.BusinessName, when)
		if sid, err := r.sms.SendSMS(slot.BookedPhone, confirmation); err != nil {
			log.Printf("❌ Failed to notify claimant %s: %v", slot.BookedPhone, err)
		} else if err := r.store.CreateMessageLog(&models.MessageLog{
			MessageSID: sid,
			Direction:  models.DirectionOutbound,
			Body:       confirmation,
			ToNumber:   slot.BookedPhone,
			Status:     string(DeliveryQueued),
		}); err != nil {
			log.Printf("⚠️  Message log insert failed: %v", err)
		}
	}

	name := slot.BookedName
	if name == "" {
		name = "the customer"
	}
	return fmt.Sprintf("✅ Confirmed: %s is booked for %s.", name, when), nil
}

// isUndoRequest matches "undo" and short phrases built around the undo
// keywords ("undo that", "cancel that opening").
func isUndoRequest(msg string) bool {
	if strings.Contains(msg, "undo") {
		return true
	}
	words := strings.Fields(msg)
	if len(words) > 4 {
		return false
	}
	for _, w := range words {
		if w == "cancel" || w == "delete" {
			return true
		}
	}
	return false
}
