package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
)

func newOTPFixture(t *testing.T) (*OTPService, *storage.MemoryStore, *fakeMessenger) {
	t.Helper()
	store := storage.NewMemoryStore()
	sms := newFakeMessenger()

	sessions, err := NewSessionService("test-jwt-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	svc := NewOTPService(store, sms, sessions, 5*time.Minute, 60*time.Second, 3)
	return svc, store, sms
}

func TestIssueSendsCode(t *testing.T) {
	svc, store, sms := newOTPFixture(t)

	err := svc.Issue("5165879844")
	require.NoError(t, err)

	otp, err := store.GetLatestOTPByPhone("+15165879844")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, otp.Code)
	assert.False(t, otp.Verified)

	require.Equal(t, 1, sms.sentCount())
	assert.Equal(t, "+15165879844", sms.sent[0].To)
	assert.Contains(t, sms.sent[0].Body, otp.Code)
}

func TestIssueRateLimitsInsideResendWindow(t *testing.T) {
	svc, _, sms := newOTPFixture(t)

	require.NoError(t, svc.Issue("+15165879844"))
	err := svc.Issue("+15165879844")
	assert.ErrorIs(t, err, ErrOTPRateLimited)
	assert.Equal(t, 1, sms.sentCount())
}

func TestIssueAllowsResendAfterWindow(t *testing.T) {
	svc, store, sms := newOTPFixture(t)

	// An earlier code issued well outside the resend window.
	require.NoError(t, store.CreateOTP(&models.OTP{
		Phone:     "+15165879844",
		Code:      "111111",
		ExpiresAt: time.Now().Add(3 * time.Minute),
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}))

	require.NoError(t, svc.Issue("+15165879844"))
	assert.Equal(t, 1, sms.sentCount())
}

func TestIssueSupersedesOutstandingCode(t *testing.T) {
	svc, store, _ := newOTPFixture(t)

	// A still-valid code issued outside the resend window.
	require.NoError(t, store.CreateOTP(&models.OTP{
		Phone:     "+15165879844",
		Code:      "111111",
		ExpiresAt: time.Now().Add(3 * time.Minute),
		CreatedAt: time.Now().Add(-2 * time.Minute),
	}))

	require.NoError(t, svc.Issue("+15165879844"))

	fresh, err := store.GetLatestOTPByPhone("+15165879844")
	require.NoError(t, err)
	require.NotEqual(t, "111111", fresh.Code)

	// The superseded code no longer verifies; the fresh one does.
	_, err = svc.Verify("+15165879844", "111111")
	assert.ErrorIs(t, err, ErrOTPInvalidOrExpired)

	result, err := svc.Verify("+15165879844", fresh.Code)
	require.NoError(t, err)
	assert.Equal(t, "+15165879844", result.Identity.Phone)
}

func TestIssueRejectsBadPhone(t *testing.T) {
	svc, _, _ := newOTPFixture(t)
	assert.Error(t, svc.Issue("12345"))
}

func TestVerifyHappyPath(t *testing.T) {
	svc, store, _ := newOTPFixture(t)

	require.NoError(t, store.CreateOTP(&models.OTP{
		Phone:     "+15165879844",
		Code:      "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}))

	result, err := svc.Verify("+15165879844", "123456")
	require.NoError(t, err)

	// No merchant or consumer on this phone: a user is created.
	assert.Equal(t, "user", result.Identity.Type)
	assert.Equal(t, "+15165879844", result.Identity.Phone)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	otp, err := store.GetLatestOTPByPhone("+15165879844")
	require.NoError(t, err)
	assert.True(t, otp.Verified)
	require.NotNil(t, otp.VerifiedAt)

	user, err := store.GetUserByPhone("+15165879844")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.Identity.ID)
	assert.Equal(t, "15165879844@sms.openslot.app", user.Email)
}

func TestVerifyResolvesMerchantFirst(t *testing.T) {
	svc, store, _ := newOTPFixture(t)

	merchant, err := store.CreateMerchant(&models.Merchant{BusinessName: "Shear Genius", Phone: "+15165879844"})
	require.NoError(t, err)
	// A consumer row on the same phone must lose to the merchant.
	_, err = store.CreateConsumer(&models.Consumer{Name: "Dana", Phone: "+15165879844"})
	require.NoError(t, err)

	require.NoError(t, store.CreateOTP(&models.OTP{
		Phone:     "+15165879844",
		Code:      "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}))

	result, err := svc.Verify("+15165879844", "123456")
	require.NoError(t, err)
	assert.Equal(t, "merchant", result.Identity.Type)
	assert.Equal(t, merchant.ID, result.Identity.ID)
}

func TestVerifyWrongOrExpiredCode(t *testing.T) {
	svc, store, _ := newOTPFixture(t)

	t.Run("no code issued", func(t *testing.T) {
		_, err := svc.Verify("+15165879840", "123456")
		assert.ErrorIs(t, err, ErrOTPInvalidOrExpired)
	})

	t.Run("malformed code", func(t *testing.T) {
		_, err := svc.Verify("+15165879840", "12ab56")
		assert.ErrorIs(t, err, ErrOTPInvalidOrExpired)
	})

	t.Run("expired code", func(t *testing.T) {
		require.NoError(t, store.CreateOTP(&models.OTP{
			Phone:     "+15165879841",
			Code:      "123456",
			ExpiresAt: time.Now().Add(-time.Minute),
		}))
		_, err := svc.Verify("+15165879841", "123456")
		assert.ErrorIs(t, err, ErrOTPInvalidOrExpired)
	})

	t.Run("wrong code increments attempts", func(t *testing.T) {
		require.NoError(t, store.CreateOTP(&models.OTP{
			Phone:     "+15165879842",
			Code:      "123456",
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}))
		_, err := svc.Verify("+15165879842", "654321")
		assert.ErrorIs(t, err, ErrOTPInvalidOrExpired)

		otp, err := store.GetLatestOTPByPhone("+15165879842")
		require.NoError(t, err)
		assert.Equal(t, 1, otp.Attempts)
	})
}

func TestVerifyAttemptCapLocksOutCorrectCode(t *testing.T) {
	svc, store, _ := newOTPFixture(t)

	require.NoError(t, store.CreateOTP(&models.OTP{
		Phone:     "+15165879844",
		Code:      "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}))

	for i := 0; i < 3; i++ {
		_, err := svc.Verify("+15165879844", "000000")
		assert.ErrorIs(t, err, ErrOTPInvalidOrExpired)
	}

	// The cap is reached: even the right code is refused now.
	_, err := svc.Verify("+15165879844", "123456")
	assert.ErrorIs(t, err, ErrOTPTooManyAttempts)
}
