package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/utils"
)

// AuthHandler exposes the phone OTP issue/verify flow.
type AuthHandler struct {
	otp *services.OTPService
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(otp *services.OTPService) *AuthHandler {
	return &AuthHandler{otp: otp}
}

// SendOTP issues a code to the given phone.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil || req.Phone == "" {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "phone is required")
	}

	if err := h.otp.Issue(req.Phone); err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidPhone):
			return errorResponse(c, fiber.StatusBadRequest, "invalid_phone", "That phone number doesn't look right")
		case errors.Is(err, services.ErrOTPRateLimited):
			return errorResponse(c, fiber.StatusTooManyRequests, "otp_rate_limited", "A code was just sent, wait a minute before requesting another")
		case errors.Is(err, services.ErrOTPSendFailed):
			return errorResponse(c, fiber.StatusInternalServerError, "otp_send_failed", "Could not send the code, please try again")
		}
		return errorResponse(c, fiber.StatusInternalServerError, "internal_error", "Something went wrong")
	}

	return c.JSON(fiber.Map{"success": true})
}

// VerifyOTP checks a code and returns a session plus the resolved identity.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Phone == "" || req.Code == "" {
		return errorResponse(c, fiber.StatusBadRequest, "missing_params", "phone and code are required")
	}

	result, err := h.otp.Verify(req.Phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidPhone):
			return errorResponse(c, fiber.StatusBadRequest, "invalid_phone", "That phone number doesn't look right")
		case errors.Is(err, services.ErrOTPInvalidOrExpired):
			return errorResponse(c, fiber.StatusUnauthorized, "invalid_or_expired", "That code is wrong or has expired")
		case errors.Is(err, services.ErrOTPTooManyAttempts):
			return errorResponse(c, fiber.StatusTooManyRequests, "too_many_attempts", "Too many attempts, request a new code")
		}
		return errorResponse(c, fiber.StatusInternalServerError, "internal_error", "Something went wrong")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"identity": result.Identity,
		"tokens":   result.Tokens,
	})
}
