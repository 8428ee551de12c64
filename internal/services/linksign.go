package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// LinkSigner signs and verifies claim links. The signature binds which
// appointment, which instant, and which length; timezone is display-only and
// status is re-checked live, so neither is part of the signed payload.
type LinkSigner struct {
	secret []byte
}

// NewLinkSigner creates a signer. An empty secret is a server
// misconfiguration and fails closed.
func NewLinkSigner(secret string) (*LinkSigner, error) {
	if secret == "" {
		return nil, errors.New("link signing secret is not configured")
	}
	return &LinkSigner{secret: []byte(secret)}, nil
}

// Sign computes a URL-safe MAC over (slotID, startUTC, durationMinutes).
func (s *LinkSigner) Sign(slotID, startUTC string, durationMinutes int) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(slotID + "|" + startUTC + "|" + strconv.Itoa(durationMinutes)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SignSlot signs using a time value, formatting the start as UTC RFC3339.
func (s *LinkSigner) SignSlot(slotID string, start time.Time, durationMinutes int) string {
	return s.Sign(slotID, start.UTC().Format(time.RFC3339), durationMinutes)
}

// Verify recomputes the MAC from the caller-supplied tuple and compares it in
// constant time. Any mismatch fails closed.
func (s *LinkSigner) Verify(slotID, startUTC string, durationMinutes int, signature string) bool {
	given, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(slotID + "|" + startUTC + "|" + strconv.Itoa(durationMinutes)))
	return hmac.Equal(mac.Sum(nil), given)
}

// ClaimURL builds the full claim link a notified consumer receives.
func (s *LinkSigner) ClaimURL(baseURL, slotID string, start time.Time, timezone string, durationMinutes int) string {
	startUTC := start.UTC().Format(time.RFC3339)
	sig := s.Sign(slotID, startUTC, durationMinutes)
	return fmt.Sprintf("%s/claim?slotId=%s&st=%s&tz=%s&dur=%d&sig=%s",
		baseURL, slotID, startUTC, timezone, durationMinutes, sig)
}
