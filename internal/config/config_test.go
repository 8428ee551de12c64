package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSigningSecrets(t *testing.T) {
	t.Setenv("LINK_SIGNING_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LINK_SIGNING_SECRET")

	t.Setenv("LINK_SIGNING_SECRET", "link-secret")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "jwt-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "link-secret", cfg.LinkSigningSecret)
	assert.Equal(t, DefaultUndoWindow, cfg.UndoWindow)
	assert.Equal(t, 5*time.Minute, cfg.OTPExpiry)
}

func TestLoadReadsWebhookValidationFlags(t *testing.T) {
	t.Setenv("LINK_SIGNING_SECRET", "link-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DISABLE_WEBHOOK_VALIDATION", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.DisableWebhookValidation)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DISABLE_WEBHOOK_VALIDATION", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.DisableWebhookValidation)
}

func TestWebhookValidationDisabled(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		disabled    bool
		want        bool
	}{
		{"production defaults to validation", "production", false, false},
		{"development skips validation", "development", false, true},
		{"explicit flag skips validation", "production", true, true},
		{"empty environment still validates", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment, DisableWebhookValidation: tt.disabled}
			assert.Equal(t, tt.want, cfg.WebhookValidationDisabled())
		})
	}
}
