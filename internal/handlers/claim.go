package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/utils"
)

// ClaimHandler performs the conditional state transition when a consumer
// claims an opening.
type ClaimHandler struct {
	slots *services.SlotService
}

// NewClaimHandler creates a claim handler.
func NewClaimHandler(slots *services.SlotService) *ClaimHandler {
	return &ClaimHandler{slots: slots}
}

// ClaimRequest is the claim POST body.
type ClaimRequest struct {
	SlotID       string `json:"slotId"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	TargetStatus string `json:"targetStatus,omitempty"`
}

// Claim books the slot for the claimant, or reports one of the expected
// conflict outcomes. Two racing claims get exactly one success.
func (h *ClaimHandler) Claim(c *fiber.Ctx) error {
	var req ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "Invalid request body")
	}
	if req.SlotID == "" || req.Name == "" || req.Phone == "" {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "slotId, name and phone are required")
	}

	target := models.SlotBooked
	if req.TargetStatus == string(models.SlotPendingConfirmation) {
		target = models.SlotPendingConfirmation
	}

	result, err := h.slots.Claim(req.SlotID, req.Name, req.Phone, target, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidPhone):
			return errorResponse(c, fiber.StatusBadRequest, "invalid_phone", "That phone number doesn't look right")
		case errors.Is(err, services.ErrSlotNotFound):
			return errorResponse(c, fiber.StatusNotFound, "slot_not_found", "This opening no longer exists")
		case errors.Is(err, services.ErrSlotExpired):
			return errorResponse(c, fiber.StatusConflict, "slot_expired", "This opening has already started")
		case errors.Is(err, services.ErrSlotUnavailable):
			return errorResponse(c, fiber.StatusConflict, "slot_unavailable", "Someone else got there first")
		case errors.Is(err, services.ErrConsumerCreate):
			return errorResponse(c, fiber.StatusInternalServerError, "consumer_create_failed", "Could not save your details")
		case errors.Is(err, services.ErrBookingUpdate):
			return errorResponse(c, fiber.StatusInternalServerError, "booking_update_failed", "Could not complete the booking")
		}
		return errorResponse(c, fiber.StatusInternalServerError, "internal_error", "Something went wrong")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"slot_id":     result.Slot.ID,
		"consumer_id": result.Consumer.ID,
		"status":      result.Slot.Status,
	})
}
