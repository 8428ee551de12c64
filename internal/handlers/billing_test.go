package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
)

const billingSecret = "whsec_test_secret"

// stripeSignatureHeader builds the v1 signature scheme Stripe sends:
// t=<unix>,v1=<hex hmac-sha256 of "<unix>.<payload>">.
func stripeSignatureHeader(payload, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newBillingApp(t *testing.T, secret string) (*fiber.App, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	app := fiber.New()
	app.Post("/webhook/stripe", NewBillingHandler(store, secret).HandleWebhook)
	return app, store
}

func postStripeEvent(t *testing.T, app *fiber.App, payload, header string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func subscriptionEvent(eventID, eventType, subID, customer, subStatus, merchantID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"api_version": %q,
		"type": %q,
		"data": {
			"object": {
				"id": %q,
				"customer": %q,
				"status": %q,
				"metadata": {"merchant_id": %q}
			}
		}
	}`, eventID, stripe.APIVersion, eventType, subID, customer, subStatus, merchantID)
}

func TestStripeWebhookSubscriptionLifecycle(t *testing.T) {
	app, store := newBillingApp(t, billingSecret)

	merchant, err := store.CreateMerchant(&models.Merchant{BusinessName: "Shear Genius"})
	require.NoError(t, err)

	created := subscriptionEvent("evt_1", "customer.subscription.created", "sub_1", "cus_1", "trialing", merchant.ID)
	status := postStripeEvent(t, app, created, stripeSignatureHeader(created, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	sub, err := store.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, sub.MerchantID)
	assert.Equal(t, "cus_1", sub.ProviderCustomerID)
	assert.Equal(t, "active", sub.Status) // trialing maps to active

	updated := subscriptionEvent("evt_2", "customer.subscription.updated", "sub_1", "cus_1", "past_due", merchant.ID)
	status = postStripeEvent(t, app, updated, stripeSignatureHeader(updated, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	sub, err = store.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", sub.Status)

	deleted := subscriptionEvent("evt_3", "customer.subscription.deleted", "sub_1", "cus_1", "active", merchant.ID)
	status = postStripeEvent(t, app, deleted, stripeSignatureHeader(deleted, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	sub, err = store.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", sub.Status)
}

func TestStripeWebhookResolvesMerchantByCustomerID(t *testing.T) {
	app, store := newBillingApp(t, billingSecret)

	merchant, err := store.CreateMerchant(&models.Merchant{
		BusinessName:     "Shear Genius",
		StripeCustomerID: "cus_42",
	})
	require.NoError(t, err)

	// No merchant_id in metadata; only the customer back-reference links it.
	payload := subscriptionEvent("evt_1", "customer.subscription.created", "sub_42", "cus_42", "active", "")
	status := postStripeEvent(t, app, payload, stripeSignatureHeader(payload, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	sub, err := store.GetSubscriptionByProviderID("sub_42")
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, sub.MerchantID)
}

func TestStripeWebhookInvoiceEvents(t *testing.T) {
	app, store := newBillingApp(t, billingSecret)

	merchant, err := store.CreateMerchant(&models.Merchant{
		BusinessName:     "Shear Genius",
		StripeCustomerID: "cus_1",
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertSubscription(&models.Subscription{
		MerchantID:             merchant.ID,
		Provider:               "stripe",
		ProviderCustomerID:     "cus_1",
		ProviderSubscriptionID: "sub_1",
		Status:                 "active",
	}))

	failed := fmt.Sprintf(`{
		"id": "evt_inv_1",
		"api_version": %q,
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_1", "customer": "cus_1", "subscription": "sub_1"}}
	}`, stripe.APIVersion)
	status := postStripeEvent(t, app, failed, stripeSignatureHeader(failed, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	sub, err := store.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", sub.Status)

	succeeded := fmt.Sprintf(`{
		"id": "evt_inv_2",
		"api_version": %q,
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_2", "customer": "cus_1", "subscription": "sub_1"}}
	}`, stripe.APIVersion)
	status = postStripeEvent(t, app, succeeded, stripeSignatureHeader(succeeded, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	sub, err = store.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
}

func TestStripeWebhookUnknownEventTypeAcked(t *testing.T) {
	app, _ := newBillingApp(t, billingSecret)

	payload := fmt.Sprintf(`{"id": "evt_x", "api_version": %q, "type": "charge.refunded", "data": {"object": {}}}`, stripe.APIVersion)
	status := postStripeEvent(t, app, payload, stripeSignatureHeader(payload, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)
}

func TestStripeWebhookUnresolvableMerchantStillAcked(t *testing.T) {
	app, store := newBillingApp(t, billingSecret)

	payload := subscriptionEvent("evt_1", "customer.subscription.created", "sub_1", "cus_unknown", "active", "")
	status := postStripeEvent(t, app, payload, stripeSignatureHeader(payload, billingSecret, time.Now()))
	assert.Equal(t, http.StatusOK, status)

	// Nothing was upserted; the failure lives in the ledger.
	_, err := store.GetSubscriptionByProviderID("sub_1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	app, store := newBillingApp(t, billingSecret)

	payload := subscriptionEvent("evt_1", "customer.subscription.created", "sub_1", "cus_1", "active", "")

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, postStripeEvent(t, app, payload, ""))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := stripeSignatureHeader(payload, "whsec_wrong", time.Now())
		assert.Equal(t, http.StatusBadRequest, postStripeEvent(t, app, payload, header))
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := stripeSignatureHeader(payload, billingSecret, time.Now().Add(-time.Hour))
		assert.Equal(t, http.StatusBadRequest, postStripeEvent(t, app, payload, header))
	})

	_, err := store.GetSubscriptionByProviderID("sub_1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStripeWebhookMissingSecretFailsClosed(t *testing.T) {
	app, _ := newBillingApp(t, "")

	payload := subscriptionEvent("evt_1", "customer.subscription.created", "sub_1", "cus_1", "active", "")
	header := stripeSignatureHeader(payload, billingSecret, time.Now())
	assert.Equal(t, http.StatusInternalServerError, postStripeEvent(t, app, payload, header))
}
