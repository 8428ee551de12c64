package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/openslot/openslot-backend/internal/services"
)

// NotifyHandler triggers the waitlist fan-out after a merchant publishes an
// opening.
type NotifyHandler struct {
	notify *services.NotifyService
}

// NewNotifyHandler creates a notify handler.
func NewNotifyHandler(notify *services.NotifyService) *NotifyHandler {
	return &NotifyHandler{notify: notify}
}

// NotifyRequest is the notify POST body.
type NotifyRequest struct {
	SlotID     string `json:"slotId"`
	MerchantID string `json:"merchantId"`
}

// Notify fans the opening out to the merchant's waitlist. Individual
// recipient failures lower the count but never fail the call.
func (h *NotifyHandler) Notify(c *fiber.Ctx) error {
	var req NotifyRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "Invalid request body")
	}
	if req.SlotID == "" || req.MerchantID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "slotId and merchantId are required")
	}

	result, err := h.notify.NotifyWaitlist(req.SlotID, req.MerchantID)
	if err != nil {
		return errorResponse(c, fiber.StatusNotFound, "not_found", err.Error())
	}

	return c.JSON(result)
}
