package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the access/refresh pair minted after OTP verification.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionService mints JWT sessions. Every session must come out of a
// verified OTP; there is no other issuance path.
type SessionService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSessionService creates a session service with an injected signing key.
func NewSessionService(secret string, accessTTL, refreshTTL time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is not configured")
	}
	return &SessionService{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// MintTokens issues an access/refresh pair for the given subject.
func (s *SessionService) MintTokens(subjectID, phone string) (*TokenPair, error) {
	now := time.Now()

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subjectID,
		"phone": phone,
		"typ":   "access",
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subjectID,
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(s.refreshTTL).Unix(),
	}).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
