package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/openslot/openslot-backend/internal/config"
	"github.com/openslot/openslot-backend/internal/handlers"
	"github.com/openslot/openslot-backend/internal/middleware"
	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/storage"
)

// Handlers bundles everything SetupRoutes needs to wire.
type Handlers struct {
	Resolve *handlers.ResolveHandler
	Claim   *handlers.ClaimHandler
	Notify  *handlers.NotifyHandler
	Auth    *handlers.AuthHandler
	SMS     *handlers.SMSHandler
	Billing *handlers.BillingHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, store storage.Store, sms services.Messenger, h Handlers) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to OpenSlot Backend!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":      "/health",
				"api":         "/api",
				"sms_webhook": "/webhook/sms",
			},
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"version":  "1.0.0",
			"database": store != nil,
			"sms":      sms != nil,
		})
	})

	// API routes
	api := app.Group("/api")

	slots := api.Group("/slots")
	slots.Get("/resolve", h.Resolve.Resolve)
	slots.Post("/claim", h.Claim.Claim)
	slots.Post("/notify", h.Notify.Notify)

	auth := api.Group("/auth")
	auth.Post("/otp/send", h.Auth.SendOTP)
	auth.Post("/otp/verify", h.Auth.VerifyOTP)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Carrier webhooks - ENVIRONMENT-AWARE VALIDATION
	if cfg.WebhookValidationDisabled() {
		// Development: skip validation so ngrok works
		log.Println("⚠️  SMS webhook validation DISABLED for development")
		webhooks.Post("/sms", h.SMS.HandleInbound)
		webhooks.Post("/sms/status", h.SMS.HandleStatusCallback)
	} else {
		validate := middleware.ValidateTwilioSignature(cfg.TwilioAuthToken)
		webhooks.Post("/sms", validate, h.SMS.HandleInbound)
		webhooks.Post("/sms/status", validate, h.SMS.HandleStatusCallback)
	}

	// Stripe does its own signature scheme inside the handler
	webhooks.Post("/stripe", h.Billing.HandleWebhook)
}
