package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
)

// FlowService interprets free-text merchant SMS into opening creation,
// running a bounded clarification dialog when the message is underspecified.
type FlowService struct {
	store     storage.Store
	extractor IntentExtractor // AI capability; may be nil
	fallback  IntentExtractor
	slots     *SlotService
	intakeTTL time.Duration
}

// NewFlowService creates the SMS command interpreter. extractor may be nil,
// in which case only the deterministic parser runs.
func NewFlowService(store storage.Store, extractor IntentExtractor, fallback IntentExtractor, slots *SlotService, intakeTTL time.Duration) *FlowService {
	return &FlowService{
		store:     store,
		extractor: extractor,
		fallback:  fallback,
		slots:     slots,
		intakeTTL: intakeTTL,
	}
}

// HandleMerchantMessage processes a non-keyword inbound message from a
// merchant: either a clarification answer for an open intake, or a fresh
// opening request. Returns the reply to text back.
func (f *FlowService) HandleMerchantMessage(merchant *models.Merchant, phone, body string, now time.Time) (string, error) {
	intake, err := f.store.GetActiveIntake(merchant.ID, phone, now)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	if intake != nil {
		// Clarification answer: re-parse with the original message plus the
		// reply as context.
		combined := intake.OriginalMessage + " " + body
		intent := f.parse(merchant, combined, now)
		if !intent.Complete() {
			intake.Question = intent.Question
			if intake.Question == "" {
				intake.Question = "Could you give me the date, time, and duration for the opening?"
			}
			if partial, err := json.Marshal(intent); err == nil {
				intake.PartialIntent = string(partial)
			}
			if err := f.store.UpdateIntake(intake); err != nil {
				return "", err
			}
			return intake.Question, nil
		}

		reply, err := f.createFromIntent(merchant, intent, now)
		if err != nil {
			return "", err
		}
		intake.Resolved = true
		if err := f.store.UpdateIntake(intake); err != nil {
			log.Printf("⚠️  Failed to mark intake %s resolved: %v", intake.ID, err)
		}
		return reply, nil
	}

	intent := f.parse(merchant, body, now)
	if !intent.Complete() {
		question := intent.Question
		if question == "" {
			question = "Could you give me the date, time, and duration for the opening?"
		}
		partial, _ := json.Marshal(intent)
		_, err := f.store.CreateIntake(&models.SMSIntake{
			MerchantID:      merchant.ID,
			Phone:           phone,
			OriginalMessage: body,
			PartialIntent:   string(partial),
			Question:        question,
			ExpiresAt:       now.Add(f.intakeTTL),
		})
		if err != nil {
			return "", err
		}
		return question, nil
	}

	return f.createFromIntent(merchant, intent, now)
}

// HandleUndo applies the undo window rule and phrases the outcome.
func (f *FlowService) HandleUndo(merchant *models.Merchant, now time.Time) string {
	slot, err := f.slots.UndoLatestSMSSlot(merchant.ID, now)
	switch {
	case err == nil:
		when := formatWhen(slot.StartTime, now, merchant.Location())
		return fmt.Sprintf("✅ Removed the opening for %s.", when)
	case errors.Is(err, ErrUndoNotFound):
		return "There's no recent SMS opening to undo."
	case errors.Is(err, ErrUndoAlreadyBooked):
		return "That opening was already claimed, so it can't be undone."
	case errors.Is(err, ErrUndoWindowExpired):
		return "That opening is older than 5 minutes and can no longer be undone."
	}
	log.Printf("❌ Undo failed for merchant %s: %v", merchant.ID, err)
	return "❌ Sorry, something went wrong. Please try again."
}

// parse runs the AI extractor when available and falls back to the
// deterministic parser on any error.
func (f *FlowService) parse(merchant *models.Merchant, message string, now time.Time) *Intent {
	if f.extractor != nil {
		intent, err := f.extractor.Extract(merchant, message, now)
		if err == nil {
			return intent
		}
		log.Printf("⚠️  Intent extractor unavailable, using fallback: %v", err)
	}
	intent, err := f.fallback.Extract(merchant, message, now)
	if err != nil {
		// The regex extractor never errors in practice; ask rather than drop.
		return &Intent{NeedsClarification: true, Question: "Could you give me the date, time, and duration for the opening?"}
	}
	return intent
}

// createFromIntent materializes an opening from a fully specified intent,
// with a conflict check. Overlapping unassigned openings are deliberately
// allowed; only staff-assigned openings conflict with each other.
func (f *FlowService) createFromIntent(merchant *models.Merchant, intent *Intent, now time.Time) (string, error) {
	loc := merchant.Location()
	start, err := intent.StartTime(loc)
	if err != nil {
		return "Could you give me the date and time for the opening?", nil
	}
	end := start.Add(time.Duration(intent.DurationMinutes) * time.Minute)

	var staffID *string
	if intent.StaffName != "" {
		key := intent.StaffName
		staffID = &key
		if existing, err := f.store.FindOverlappingSlotForStaff(merchant.ID, key, start.UTC(), end.UTC()); err == nil {
			return fmt.Sprintf("⚠️ That time collides with an existing appointment (%s at %s). Pick another time?",
				displayName(existing), existing.StartTime.In(loc).Format("3:04 PM")), nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}

	slot := &models.Slot{
		MerchantID:      merchant.ID,
		StaffID:         staffID,
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		DurationMinutes: intent.DurationMinutes,
		AppointmentName: intent.AppointmentName,
		Status:          models.SlotOpen,
		Source:          models.SourceSMS,
	}
	if _, err := f.store.CreateSlot(slot); err != nil {
		return "", err
	}

	when := formatWhen(start, now.In(loc), loc)
	reply := fmt.Sprintf("✅ Opening created: %s (%s)", when, formatDuration(intent.DurationMinutes))
	if intent.AppointmentName != "" {
		reply += " for " + intent.AppointmentName
	}
	reply += ". Reply UNDO within 5 minutes to remove it."
	return reply, nil
}

func displayName(slot *models.Slot) string {
	if slot.AppointmentName != "" {
		return slot.AppointmentName
	}
	return "an appointment"
}

// formatWhen renders a start time as "today"/"tomorrow" when applicable, else
// "Monday, Jan 2", always with a 12-hour clock.
func formatWhen(start time.Time, now time.Time, loc *time.Location) string {
	local := start.In(loc)
	localNow := now.In(loc)

	day := local.Format("Monday, Jan 2")
	if sameDate(local, localNow) {
		day = "today"
	} else if sameDate(local, localNow.AddDate(0, 0, 1)) {
		day = "tomorrow"
	}
	return fmt.Sprintf("%s at %s", day, local.Format("3:04 PM"))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hrs := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%d hr", hrs)
	}
	return fmt.Sprintf("%d hr %d min", hrs, rem)
}
