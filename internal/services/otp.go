package services

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/storage"
	"github.com/openslot/openslot-backend/internal/utils"
)

var (
	ErrOTPRateLimited      = errors.New("otp_rate_limited")
	ErrOTPInvalidOrExpired = errors.New("invalid_or_expired")
	ErrOTPTooManyAttempts  = errors.New("too_many_attempts")
	ErrOTPSendFailed       = errors.New("otp_send_failed")
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// Identity is the application identity a verified code resolves to.
type Identity struct {
	Type  string `json:"type"` // merchant, consumer, user
	ID    string `json:"id"`
	Phone string `json:"phone"`
}

// VerifyResult bundles the resolved identity with a minted session.
type VerifyResult struct {
	Identity Identity   `json:"identity"`
	Tokens   *TokenPair `json:"tokens"`
}

// OTPService issues and verifies phone-bound one-time codes and bridges a
// verified code into an application session. Every session issuance passes
// through a verified, unexpired, attempt-bounded code; there is no bypass.
type OTPService struct {
	store        storage.Store
	sms          Messenger
	sessions     *SessionService
	expiry       time.Duration
	resendWindow time.Duration
	maxAttempts  int
}

// NewOTPService creates an OTP authenticator.
func NewOTPService(store storage.Store, sms Messenger, sessions *SessionService, expiry, resendWindow time.Duration, maxAttempts int) *OTPService {
	return &OTPService{
		store:        store,
		sms:          sms,
		sessions:     sessions,
		expiry:       expiry,
		resendWindow: resendWindow,
		maxAttempts:  maxAttempts,
	}
}

// Issue generates, persists, and sends a 6-digit code. A non-expired code
// created inside the resend window rate-limits the request; a legitimate
// resend is allowed once the window passes and immediately expires the
// outstanding code, so at most one code per phone can ever verify. A
// transport failure fails the whole issue call even though the stored code
// remains.
func (s *OTPService) Issue(phone string) error {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return err
	}

	now := time.Now()
	if latest, err := s.store.GetLatestOTPByPhone(normalized); err == nil {
		if latest.ExpiresAt.After(now) {
			if now.Sub(latest.CreatedAt) < s.resendWindow {
				return ErrOTPRateLimited
			}
			latest.ExpiresAt = now
			if err := s.store.UpdateOTP(latest); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	code, err := utils.GenerateSecureOTP()
	if err != nil {
		return err
	}

	otp := &models.OTP{
		Phone:     normalized,
		Code:      code,
		ExpiresAt: now.Add(s.expiry),
	}
	if err := s.store.CreateOTP(otp); err != nil {
		return err
	}

	body := fmt.Sprintf("Your OpenSlot verification code is %s. It expires in %d minutes.",
		code, int(s.expiry.Minutes()))
	sid, err := s.sms.SendSMS(normalized, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPSendFailed, err)
	}

	if err := s.store.CreateMessageLog(&models.MessageLog{
		MessageSID: sid,
		Direction:  models.DirectionOutbound,
		Body:       "verification code",
		ToNumber:   normalized,
		Status:     string(DeliveryQueued),
	}); err != nil {
		log.Printf("⚠️  Message log insert failed for OTP to %s: %v", normalized, err)
	}

	return nil
}

// Verify checks a code against the phone's active OTP. Failed attempts are
// counted on the active code; once the cap is reached even the correct code
// is refused.
func (s *OTPService) Verify(phone, code string) (*VerifyResult, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if !sixDigits.MatchString(code) {
		return nil, ErrOTPInvalidOrExpired
	}

	now := time.Now()
	otp, err := s.store.GetActiveOTPByPhone(normalized, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOTPInvalidOrExpired
		}
		return nil, err
	}

	if otp.Attempts >= s.maxAttempts {
		return nil, ErrOTPTooManyAttempts
	}

	if otp.Code != code {
		otp.Attempts++
		if err := s.store.UpdateOTP(otp); err != nil {
			return nil, err
		}
		return nil, ErrOTPInvalidOrExpired
	}

	otp.Verified = true
	otp.VerifiedAt = &now
	if err := s.store.UpdateOTP(otp); err != nil {
		return nil, err
	}

	identity, err := s.resolveIdentity(normalized)
	if err != nil {
		return nil, err
	}

	tokens, err := s.sessions.MintTokens(identity.ID, normalized)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Identity: identity, Tokens: tokens}, nil
}

// resolveIdentity maps a verified phone onto an application identity, in
// order: merchant, consumer, user by phone, user by the deterministic
// synthetic address, and finally a freshly created user.
func (s *OTPService) resolveIdentity(phone string) (Identity, error) {
	if merchant, err := s.store.GetMerchantByPhone(phone); err == nil {
		return Identity{Type: "merchant", ID: merchant.ID, Phone: phone}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Identity{}, err
	}

	if consumer, err := s.store.GetConsumerByPhone(phone); err == nil {
		return Identity{Type: "consumer", ID: consumer.ID, Phone: phone}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Identity{}, err
	}

	if user, err := s.store.GetUserByPhone(phone); err == nil {
		return Identity{Type: "user", ID: user.ID, Phone: phone}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Identity{}, err
	}

	// Last-resort lookup only; the synthetic address is never a primary key.
	if user, err := s.store.GetUserByEmail(SyntheticAddress(phone)); err == nil {
		return Identity{Type: "user", ID: user.ID, Phone: phone}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Identity{}, err
	}

	user, err := s.store.CreateUser(&models.User{Phone: phone, Email: SyntheticAddress(phone)})
	if err != nil {
		return Identity{}, err
	}
	return Identity{Type: "user", ID: user.ID, Phone: phone}, nil
}

// SyntheticAddress derives a deterministic email-shaped address from a phone.
func SyntheticAddress(phone string) string {
	return strings.TrimPrefix(phone, "+") + "@sms.openslot.app"
}
