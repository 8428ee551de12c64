package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/openslot/openslot-backend/internal/models"
)

// Intent is the structured result of parsing an inbound "create an opening"
// message.
type Intent struct {
	Date               string `json:"date"` // 2006-01-02, merchant-local
	Time               string `json:"time"` // 15:04, merchant-local
	DurationMinutes    int    `json:"duration_minutes"`
	AppointmentName    string `json:"appointment_name,omitempty"`
	StaffName          string `json:"staff_name,omitempty"`
	Confidence         string `json:"confidence"`
	NeedsClarification bool   `json:"needs_clarification"`
	Question           string `json:"question,omitempty"`
}

// Complete reports whether the intent is ready to create an opening.
func (i *Intent) Complete() bool {
	return !i.NeedsClarification && i.Date != "" && i.Time != "" && i.DurationMinutes > 0
}

// StartTime resolves the intent's local date and time in loc.
func (i *Intent) StartTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", i.Date+" "+i.Time, loc)
}

// IntentExtractor parses free text into an Intent given the merchant's saved
// vocabulary and local time. Implementations may be non-deterministic; the
// regex extractor is the reproducible fallback.
type IntentExtractor interface {
	Extract(merchant *models.Merchant, message string, now time.Time) (*Intent, error)
}

// --- Deterministic fallback ---

var (
	timeAmPmRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	timeColonRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	minutesRe   = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:min|mins|minutes)\b`)
	hoursRe     = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:hr|hrs|hour|hours)\b`)
	withStaffRe = regexp.MustCompile(`(?i)\bwith\s+([a-z]+)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// Common appointment-type keywords recognized when the merchant has no saved
// vocabulary entry for the message.
var commonApptTypes = []string{
	"haircut", "trim", "color", "blowout", "massage", "facial",
	"manicure", "pedicure", "waxing", "cleaning", "consultation",
	"checkup", "lesson", "tutoring",
}

// RegexExtractor is the deterministic parser used when the AI capability is
// unavailable or errors.
type RegexExtractor struct{}

// NewRegexExtractor creates the deterministic extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract pulls a time token, a relative-or-named day, a duration, and an
// appointment-type keyword out of the message. A missing time token always
// asks for clarification; everything else falls back to defaults.
func (e *RegexExtractor) Extract(merchant *models.Merchant, message string, now time.Time) (*Intent, error) {
	loc := merchant.Location()
	localNow := now.In(loc)
	lower := strings.ToLower(message)

	intent := &Intent{Confidence: "low"}

	hour, minute, found := parseTimeToken(message)
	if !found {
		intent.NeedsClarification = true
		intent.Question = "What time should the opening start?"
		return intent, nil
	}
	intent.Time = fmt.Sprintf("%02d:%02d", hour, minute)

	date := localNow
	switch {
	case strings.Contains(lower, "tomorrow"):
		date = localNow.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		// already localNow
	default:
		for name, wd := range weekdays {
			if strings.Contains(lower, name) {
				ahead := (int(wd) - int(localNow.Weekday()) + 7) % 7
				// Naming today's weekday means today only while the time is
				// still ahead; otherwise it means next week.
				if ahead == 0 && (hour < localNow.Hour() ||
					(hour == localNow.Hour() && minute <= localNow.Minute())) {
					ahead = 7
				}
				date = localNow.AddDate(0, 0, ahead)
				break
			}
		}
	}
	intent.Date = date.Format("2006-01-02")

	intent.DurationMinutes = parseDurationToken(message)
	if intent.DurationMinutes == 0 {
		intent.DurationMinutes = merchant.DefaultDurationMinutes
	}
	if intent.DurationMinutes == 0 {
		intent.DurationMinutes = 30
	}

	intent.AppointmentName = matchApptType(merchant, lower)

	if m := withStaffRe.FindStringSubmatch(message); m != nil {
		name := strings.ToLower(m[1])
		intent.StaffName = strings.ToUpper(name[:1]) + name[1:]
	}

	return intent, nil
}

func parseTimeToken(message string) (hour, minute int, ok bool) {
	if m := timeAmPmRe.FindStringSubmatch(message); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 12 || minute > 59 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
		if strings.EqualFold(m[3], "pm") {
			hour += 12
		}
		return hour, minute, true
	}
	if m := timeColonRe.FindStringSubmatch(message); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, 0, false
		}
		return hour, minute, true
	}
	return 0, 0, false
}

func parseDurationToken(message string) int {
	if m := minutesRe.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := hoursRe.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 60
	}
	return 0
}

func matchApptType(merchant *models.Merchant, lower string) string {
	if merchant.ApptTypes != "" {
		for _, t := range strings.Split(merchant.ApptTypes, ",") {
			t = strings.TrimSpace(t)
			if t != "" && strings.Contains(lower, strings.ToLower(t)) {
				return t
			}
		}
	}
	for _, t := range commonApptTypes {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return ""
}

// --- AI capability ---

// OpenAIExtractor asks a language model to parse the message, constrained to
// the merchant's saved vocabulary. Callers fall back to the regex extractor
// on any error.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor creates the AI-backed extractor, or nil when no API key
// is configured.
func NewOpenAIExtractor(apiKey string) *OpenAIExtractor {
	if apiKey == "" {
		return nil
	}
	return &OpenAIExtractor{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

func (e *OpenAIExtractor) Extract(merchant *models.Merchant, message string, now time.Time) (*Intent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	localNow := now.In(merchant.Location())
	system := fmt.Sprintf(`You parse SMS messages from a business owner into an appointment opening.
Business appointment types: %s
Saved durations (minutes): %s
Default duration: %d minutes
Working hours: %02d:00-%02d:00
Current local time: %s

Respond with JSON only: {"date":"YYYY-MM-DD","time":"HH:MM","duration_minutes":N,"appointment_name":"","staff_name":"","confidence":"high|low","needs_clarification":false,"question":""}
If the message does not specify enough to create an opening, set needs_clarification to true and ask one specific question.`,
		merchant.ApptTypes, merchant.SavedDurations, merchant.DefaultDurationMinutes,
		merchant.OpenHour, merchant.CloseHour, localNow.Format("Monday 2006-01-02 15:04"))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("intent extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("intent extraction returned no choices")
	}

	var intent Intent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &intent); err != nil {
		return nil, fmt.Errorf("intent extraction returned invalid JSON: %w", err)
	}
	if intent.DurationMinutes == 0 {
		intent.DurationMinutes = merchant.DefaultDurationMinutes
	}
	return &intent, nil
}
