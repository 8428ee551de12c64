package models

import (
	"time"
)

// NotifyRequest is a consumer's standing request to hear about openings for a
// merchant, optionally scoped to a staff member and a time-range filter.
type NotifyRequest struct {
	ID         string  `gorm:"primaryKey" json:"id"`
	MerchantID string  `gorm:"not null;index" json:"merchant_id"`
	ConsumerID string  `gorm:"not null;index" json:"consumer_id"`
	StaffID    *string `gorm:"index" json:"staff_id,omitempty"`

	// TimeRange is either symbolic ("", "anytime", "today", "tomorrow") or a
	// concrete date key like "2025-01-10".
	TimeRange string `json:"time_range,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeRangeActive reports whether the request's filter is still current.
// Expiry is evaluated lazily here, not by a background sweep. Symbolic ranges
// are interpreted relative to the day the request was created, in loc.
func (r *NotifyRequest) TimeRangeActive(now time.Time, loc *time.Location) bool {
	switch r.TimeRange {
	case "", "anytime":
		return true
	case "today":
		return sameDay(now.In(loc), r.CreatedAt.In(loc))
	case "tomorrow":
		deadline := r.CreatedAt.In(loc).AddDate(0, 0, 1)
		return !now.In(loc).After(endOfDay(deadline))
	}
	d, err := time.ParseInLocation("2006-01-02", r.TimeRange, loc)
	if err != nil {
		// Unparseable filters never match anything; treat as expired.
		return false
	}
	return !now.In(loc).After(endOfDay(d))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
