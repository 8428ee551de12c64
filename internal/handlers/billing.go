package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
)

// BillingHandler processes payment-provider webhooks. Every event, handled
// or not, is appended to the billing-event ledger; that ledger is the audit
// trail for disputed billing states.
type BillingHandler struct {
	store         storage.Store
	webhookSecret string
}

// NewBillingHandler creates a billing webhook handler.
func NewBillingHandler(store storage.Store, webhookSecret string) *BillingHandler {
	return &BillingHandler{store: store, webhookSecret: webhookSecret}
}

// stripeSubscription holds the webhook payload fields we act on. In webhook
// payloads "customer" is a bare ID string, never an expanded object.
type stripeSubscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// HandleWebhook verifies the Stripe signature and applies the subscription
// lifecycle event idempotently.
func (h *BillingHandler) HandleWebhook(c *fiber.Ctx) error {
	if h.webhookSecret == "" {
		log.Println("ERROR: Stripe webhook secret not configured, rejecting webhook")
		return errorResponse(c, fiber.StatusInternalServerError, "server_misconfigured", "Server configuration error")
	}

	sigHeader := c.Get("Stripe-Signature")
	if sigHeader == "" {
		return errorResponse(c, fiber.StatusBadRequest, "missing_signature", "Missing Stripe-Signature header")
	}

	event, err := webhook.ConstructEvent(c.Body(), sigHeader, h.webhookSecret)
	if err != nil {
		log.Printf("🚨 Stripe webhook signature verification failed: %v", err)
		return errorResponse(c, fiber.StatusBadRequest, "invalid_signature", "Invalid signature")
	}

	merchantID, processErr := h.process(event)

	ledger := &models.BillingEvent{
		Provider:   "stripe",
		EventType:  string(event.Type),
		EventID:    event.ID,
		MerchantID: merchantID,
		RawPayload: string(event.Data.Raw),
		Processed:  processErr == nil,
	}
	if processErr != nil {
		ledger.Error = processErr.Error()
		log.Printf("❌ Failed to process stripe event %s (%s): %v", event.ID, event.Type, processErr)
	}
	if err := h.store.CreateBillingEvent(ledger); err != nil {
		log.Printf("❌ Failed to write billing ledger for event %s: %v", event.ID, err)
	}

	// Acknowledge regardless of processing outcome; the ledger holds the
	// failure and a retry storm helps nobody.
	return c.JSON(fiber.Map{"received": true})
}

func (h *BillingHandler) process(event stripe.Event) (string, error) {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return h.applySubscription(event.Data.Raw, "")
	case "customer.subscription.deleted":
		return h.applySubscription(event.Data.Raw, "cancelled")
	case "invoice.payment_failed":
		return h.applyInvoice(event.Data.Raw, "past_due")
	case "invoice.payment_succeeded":
		return h.applyInvoice(event.Data.Raw, "active")
	}
	log.Printf("Skipping unhandled stripe event type %s", event.Type)
	return "", nil
}

// applySubscription upserts the subscription row. statusOverride forces the
// stored status (deletion events report the pre-deletion status).
func (h *BillingHandler) applySubscription(raw json.RawMessage, statusOverride string) (string, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", fmt.Errorf("failed to parse subscription payload: %w", err)
	}

	merchantID, err := h.resolveMerchant(sub.Metadata, sub.Customer)
	if err != nil {
		return "", err
	}

	status := statusOverride
	if status == "" {
		status = mapSubscriptionStatus(sub.Status)
	}

	err = h.store.UpsertSubscription(&models.Subscription{
		MerchantID:             merchantID,
		Provider:               "stripe",
		ProviderCustomerID:     sub.Customer,
		ProviderSubscriptionID: sub.ID,
		Status:                 status,
	})
	return merchantID, err
}

func (h *BillingHandler) applyInvoice(raw json.RawMessage, status string) (string, error) {
	var inv stripeInvoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return "", fmt.Errorf("failed to parse invoice payload: %w", err)
	}
	if inv.Subscription == "" {
		// One-off invoice; nothing to update.
		return "", nil
	}

	merchantID, err := h.resolveMerchant(inv.Metadata, inv.Customer)
	if err != nil {
		return "", err
	}

	err = h.store.UpsertSubscription(&models.Subscription{
		MerchantID:             merchantID,
		Provider:               "stripe",
		ProviderCustomerID:     inv.Customer,
		ProviderSubscriptionID: inv.Subscription,
		Status:                 status,
	})
	return merchantID, err
}

// resolveMerchant finds the owning merchant via the embedded metadata id or,
// failing that, the provider-customer back-reference.
func (h *BillingHandler) resolveMerchant(metadata map[string]string, customerID string) (string, error) {
	if id := metadata["merchant_id"]; id != "" {
		if _, err := h.store.GetMerchant(id); err == nil {
			return id, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}
	if customerID != "" {
		merchant, err := h.store.GetMerchantByStripeCustomerID(customerID)
		if err == nil {
			return merchant.ID, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("no merchant found for customer %q", customerID)
}

func mapSubscriptionStatus(providerStatus string) string {
	switch providerStatus {
	case "active", "trialing":
		return "active"
	case "past_due":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "cancelled"
	case "unpaid", "paused", "incomplete":
		return "suspended"
	}
	return providerStatus
}
