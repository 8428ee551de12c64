package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/storage"
)

// ResolveHandler serves the unauthenticated link-resolution step a consumer
// hits when they tap a claim link.
type ResolveHandler struct {
	store  storage.Store
	signer *services.LinkSigner
}

// NewResolveHandler creates a resolve handler.
func NewResolveHandler(store storage.Store, signer *services.LinkSigner) *ResolveHandler {
	return &ResolveHandler{store: store, signer: signer}
}

// Resolve verifies the link signature, re-checks the live row, and returns
// the opening details or alternatives. The signature authenticates which
// appointment, instant, and length; availability is always checked live.
func (h *ResolveHandler) Resolve(c *fiber.Ctx) error {
	slotID := c.Query("slotId")
	st := c.Query("st")
	tz := c.Query("tz")
	durStr := c.Query("dur")
	sig := c.Query("sig")

	if slotID == "" || st == "" || durStr == "" || sig == "" {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "slotId, st, dur and sig are required")
	}
	dur, err := strconv.Atoi(durStr)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "dur must be a number")
	}

	if !h.signer.Verify(slotID, st, dur, sig) {
		log.Printf("🚨 Tampered or invalid claim link for slot %s from %s", slotID, c.IP())
		return errorResponse(c, fiber.StatusForbidden, "invalid_signature", "This link is invalid")
	}

	start, err := time.Parse(time.RFC3339, st)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "st must be an RFC3339 timestamp")
	}

	slot, err := h.store.GetSlot(slotID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResponse(c, fiber.StatusNotFound, "slot_not_found", "This opening no longer exists")
		}
		return errorResponse(c, fiber.StatusInternalServerError, "internal_error", "Something went wrong")
	}

	merchant, err := h.store.GetMerchant(slot.MerchantID)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, "internal_error", "Something went wrong")
	}

	// A valid signature over stale parameters is still a stale link: the row
	// may have been edited since the link was sent.
	if !start.Equal(slot.StartTime) || dur != slot.DurationMinutes {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":      false,
			"error":        "slot_modified",
			"message":      "This opening has changed since the link was sent",
			"alternatives": h.alternatives(slot.MerchantID),
		})
	}

	now := time.Now()
	if !slot.Status.Claimable() || !slot.StartTime.After(now) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":      false,
			"error":        "slot_unavailable",
			"message":      "This opening is no longer available",
			"alternatives": h.alternatives(slot.MerchantID),
		})
	}

	loc := merchant.Location()
	return c.JSON(fiber.Map{
		"success":          true,
		"slot_id":          slot.ID,
		"merchant_id":      merchant.ID,
		"business_name":    merchant.BusinessName,
		"appointment_name": slot.AppointmentName,
		"start_time":       slot.StartTime.UTC(),
		"end_time":         slot.EndTime.UTC(),
		"duration_minutes": slot.DurationMinutes,
		"timezone":         tz,
		"display_label":    slot.StartTime.In(loc).Format("Monday, Jan 2 at 3:04 PM"),
	})
}

func (h *ResolveHandler) alternatives(merchantID string) []fiber.Map {
	slots, err := h.store.GetUpcomingOpenSlots(merchantID, time.Now(), 3)
	if err != nil {
		log.Printf("⚠️  Failed to load alternatives for merchant %s: %v", merchantID, err)
		return []fiber.Map{}
	}
	out := make([]fiber.Map, 0, len(slots))
	for _, s := range slots {
		out = append(out, fiber.Map{
			"slot_id":          s.ID,
			"start_time":       s.StartTime.UTC(),
			"duration_minutes": s.DurationMinutes,
			"appointment_name": s.AppointmentName,
		})
	}
	return out
}

// errorResponse writes the standard machine-readable error envelope.
func errorResponse(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   code,
		"message": message,
	})
}
