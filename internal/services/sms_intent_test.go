package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openslot/openslot-backend/internal/models"
)

// Monday, January 5 2026, 10:00 UTC.
var parseNow = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func extract(t *testing.T, merchant *models.Merchant, message string) *Intent {
	t.Helper()
	intent, err := NewRegexExtractor().Extract(merchant, message, parseNow)
	require.NoError(t, err)
	return intent
}

func TestRegexExtractorFullMessage(t *testing.T) {
	merchant := &models.Merchant{Timezone: "UTC", DefaultDurationMinutes: 30}

	intent := extract(t, merchant, "haircut tomorrow 3pm 45 min")
	assert.True(t, intent.Complete())
	assert.Equal(t, "2026-01-06", intent.Date)
	assert.Equal(t, "15:00", intent.Time)
	assert.Equal(t, 45, intent.DurationMinutes)
	assert.Equal(t, "haircut", intent.AppointmentName)
}

func TestRegexExtractorAsksWithoutTimeToken(t *testing.T) {
	merchant := &models.Merchant{Timezone: "UTC"}

	// A bare number is ambiguous; only am/pm or a colon counts as a time.
	for _, msg := range []string{"add an opening tomorrow", "haircut at 3", "open up friday"} {
		intent := extract(t, merchant, msg)
		assert.True(t, intent.NeedsClarification, "message %q", msg)
		assert.Equal(t, "What time should the opening start?", intent.Question)
	}
}

func TestRegexExtractorTimeTokens(t *testing.T) {
	merchant := &models.Merchant{Timezone: "UTC", DefaultDurationMinutes: 30}

	tests := []struct {
		message string
		want    string
	}{
		{"today 3pm", "15:00"},
		{"today 3:30pm", "15:30"},
		{"today 9am", "09:00"},
		{"today 12pm", "12:00"},
		{"today 12am", "00:00"},
		{"today 14:30", "14:30"},
		{"today 9:05", "09:05"},
	}
	for _, tt := range tests {
		intent := extract(t, merchant, tt.message)
		require.False(t, intent.NeedsClarification, "message %q", tt.message)
		assert.Equal(t, tt.want, intent.Time, "message %q", tt.message)
	}
}

func TestRegexExtractorDates(t *testing.T) {
	merchant := &models.Merchant{Timezone: "UTC", DefaultDurationMinutes: 30}

	tests := []struct {
		message string
		want    string
	}{
		{"3pm today", "2026-01-05"},
		{"3pm tomorrow", "2026-01-06"},
		{"3pm friday", "2026-01-09"},
		{"3pm monday", "2026-01-05"},   // same weekday, time still ahead: today
		{"9am monday", "2026-01-12"},   // same weekday, time already past: next week
		{"10:00 monday", "2026-01-12"}, // same weekday, exactly now: next week
		{"3pm", "2026-01-05"},          // no day defaults to today
	}
	for _, tt := range tests {
		intent := extract(t, merchant, tt.message)
		assert.Equal(t, tt.want, intent.Date, "message %q", tt.message)
	}
}

func TestRegexExtractorDurations(t *testing.T) {
	merchant := &models.Merchant{Timezone: "UTC", DefaultDurationMinutes: 20}

	assert.Equal(t, 45, extract(t, merchant, "3pm 45 min").DurationMinutes)
	assert.Equal(t, 45, extract(t, merchant, "3pm 45 minutes").DurationMinutes)
	assert.Equal(t, 90, extract(t, merchant, "3pm 90 mins").DurationMinutes)
	assert.Equal(t, 60, extract(t, merchant, "3pm 1 hr").DurationMinutes)
	assert.Equal(t, 120, extract(t, merchant, "3pm 2 hours").DurationMinutes)

	// No token falls back to the merchant default, then the global default.
	assert.Equal(t, 20, extract(t, merchant, "3pm").DurationMinutes)
	assert.Equal(t, 30, extract(t, &models.Merchant{Timezone: "UTC"}, "3pm").DurationMinutes)
}

func TestRegexExtractorAppointmentTypes(t *testing.T) {
	// Saved vocabulary wins over the built-in keyword list.
	merchant := &models.Merchant{Timezone: "UTC", ApptTypes: "Deep Tissue,Hot Stone"}
	assert.Equal(t, "Deep Tissue", extract(t, merchant, "deep tissue tomorrow 2pm").AppointmentName)

	plain := &models.Merchant{Timezone: "UTC"}
	assert.Equal(t, "massage", extract(t, plain, "massage tomorrow 2pm").AppointmentName)
	assert.Equal(t, "", extract(t, plain, "opening tomorrow 2pm").AppointmentName)
}

func TestRegexExtractorStaffName(t *testing.T) {
	merchant := &models.Merchant{Timezone: "UTC"}

	intent := extract(t, merchant, "haircut tomorrow 3pm with sarah")
	assert.Equal(t, "Sarah", intent.StaffName)

	intent = extract(t, merchant, "haircut tomorrow 3pm")
	assert.Equal(t, "", intent.StaffName)
}

func TestRegexExtractorHonorsMerchantTimezone(t *testing.T) {
	merchant := &models.Merchant{Timezone: "America/New_York", DefaultDurationMinutes: 30}

	// 10:00 UTC is 05:00 in New York, so "tomorrow" is the local Jan 6.
	intent := extract(t, merchant, "3pm tomorrow")
	assert.Equal(t, "2026-01-06", intent.Date)

	loc := merchant.Location()
	start, err := intent.StartTime(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 6, 15, 0, 0, 0, loc), start)
}

func TestIntentComplete(t *testing.T) {
	assert.True(t, (&Intent{Date: "2026-01-06", Time: "15:00", DurationMinutes: 45}).Complete())
	assert.False(t, (&Intent{Date: "2026-01-06", Time: "15:00"}).Complete())
	assert.False(t, (&Intent{Time: "15:00", DurationMinutes: 45}).Complete())
	assert.False(t, (&Intent{Date: "2026-01-06", DurationMinutes: 45}).Complete())
	assert.False(t, (&Intent{Date: "2026-01-06", Time: "15:00", DurationMinutes: 45, NeedsClarification: true}).Complete())
}
