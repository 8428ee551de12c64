package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/storage"
)

type resolveFixture struct {
	app    *fiber.App
	store  *storage.MemoryStore
	signer *services.LinkSigner
	slot   *models.Slot
}

func newResolveFixture(t *testing.T) *resolveFixture {
	t.Helper()
	store := storage.NewMemoryStore()

	signer, err := services.NewLinkSigner("test-secret")
	require.NoError(t, err)

	merchant, err := store.CreateMerchant(&models.Merchant{
		ID:           "m1",
		BusinessName: "Shear Genius",
		Timezone:     "UTC",
	})
	require.NoError(t, err)

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second).UTC()
	slot, err := store.CreateSlot(&models.Slot{
		MerchantID:      merchant.ID,
		StartTime:       start,
		EndTime:         start.Add(45 * time.Minute),
		DurationMinutes: 45,
		AppointmentName: "haircut",
		Status:          models.SlotOpen,
	})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/api/slots/resolve", NewResolveHandler(store, signer).Resolve)

	return &resolveFixture{app: app, store: store, signer: signer, slot: slot}
}

func (fx *resolveFixture) resolveURL(slotID, st string, dur int, sig string) string {
	return fmt.Sprintf("/api/slots/resolve?slotId=%s&st=%s&tz=UTC&dur=%d&sig=%s", slotID, st, dur, sig)
}

func getJSON(t *testing.T, app *fiber.App, url string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestResolveHappyPath(t *testing.T) {
	fx := newResolveFixture(t)
	st := fx.slot.StartTime.Format(time.RFC3339)
	sig := fx.signer.Sign(fx.slot.ID, st, 45)

	status, body := getJSON(t, fx.app, fx.resolveURL(fx.slot.ID, st, 45, sig))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, fx.slot.ID, body["slot_id"])
	assert.Equal(t, "Shear Genius", body["business_name"])
	assert.Equal(t, "haircut", body["appointment_name"])
	assert.Equal(t, float64(45), body["duration_minutes"])
	assert.NotEmpty(t, body["display_label"])
}

func TestResolveMissingParams(t *testing.T) {
	fx := newResolveFixture(t)

	status, body := getJSON(t, fx.app, "/api/slots/resolve?slotId="+fx.slot.ID)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing_params", body["error"])
}

func TestResolveTamperedSignature(t *testing.T) {
	fx := newResolveFixture(t)
	st := fx.slot.StartTime.Format(time.RFC3339)
	sig := fx.signer.Sign(fx.slot.ID, st, 45)

	// A longer duration under the old signature must not resolve.
	status, body := getJSON(t, fx.app, fx.resolveURL(fx.slot.ID, st, 90, sig))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "invalid_signature", body["error"])
}

func TestResolveUnknownSlot(t *testing.T) {
	fx := newResolveFixture(t)
	st := fx.slot.StartTime.Format(time.RFC3339)
	sig := fx.signer.Sign("gone", st, 45)

	status, body := getJSON(t, fx.app, fx.resolveURL("gone", st, 45, sig))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "slot_not_found", body["error"])
}

func TestResolveStaleLinkAfterEdit(t *testing.T) {
	fx := newResolveFixture(t)
	st := fx.slot.StartTime.Format(time.RFC3339)
	sig := fx.signer.Sign(fx.slot.ID, st, 45)

	// The merchant moves the opening after the link went out. The old link is
	// validly signed but stale.
	fx.slot.StartTime = fx.slot.StartTime.Add(time.Hour)
	require.NoError(t, fx.store.UpdateSlot(fx.slot))

	status, body := getJSON(t, fx.app, fx.resolveURL(fx.slot.ID, st, 45, sig))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "slot_modified", body["error"])
	assert.Contains(t, body, "alternatives")
}

func TestResolveClaimedSlotOffersAlternatives(t *testing.T) {
	fx := newResolveFixture(t)
	st := fx.slot.StartTime.Format(time.RFC3339)
	sig := fx.signer.Sign(fx.slot.ID, st, 45)

	fx.slot.Status = models.SlotBooked
	require.NoError(t, fx.store.UpdateSlot(fx.slot))

	// Another open slot exists to suggest.
	altStart := time.Now().Add(5 * time.Hour).UTC()
	_, err := fx.store.CreateSlot(&models.Slot{
		MerchantID:      fx.slot.MerchantID,
		StartTime:       altStart,
		EndTime:         altStart.Add(30 * time.Minute),
		DurationMinutes: 30,
		Status:          models.SlotOpen,
	})
	require.NoError(t, err)

	status, body := getJSON(t, fx.app, fx.resolveURL(fx.slot.ID, st, 45, sig))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "slot_unavailable", body["error"])

	alts, ok := body["alternatives"].([]any)
	require.True(t, ok)
	assert.Len(t, alts, 1)
}
