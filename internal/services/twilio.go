package services

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Messenger is the SMS transport the dispatcher, OTP authenticator, and
// conversational handlers send through. Returns the carrier message SID.
type Messenger interface {
	SendSMS(to, body string) (string, error)
}

// TwilioService sends SMS via the Twilio REST API.
type TwilioService struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioService creates a new Twilio service instance. Credentials are
// injected; this never reads the environment.
func NewTwilioService(accountSID, authToken, from string) (*TwilioService, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioService{client: client, from: from}, nil
}

// SendSMS sends a text message and returns the carrier message SID.
func (t *TwilioService) SendSMS(to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send SMS to %s: %v", to, err)
		return "", err
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		return "", fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, *resp.ErrorMessage)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Printf("✅ SMS sent to %s, SID: %s", to, sid)
	return sid, nil
}

// LogMessenger logs instead of sending. Stands in for Twilio when no
// credentials are configured, so local development still works end to end.
type LogMessenger struct {
	counter atomic.Int64
}

// NewLogMessenger creates a log-only messenger.
func NewLogMessenger() *LogMessenger {
	return &LogMessenger{}
}

// SendSMS logs the message and returns a fake SID.
func (m *LogMessenger) SendSMS(to, body string) (string, error) {
	sid := fmt.Sprintf("LOCAL%015d", m.counter.Add(1))
	log.Printf("📱 [log-only] SMS to %s (%s): %s", to, sid, body)
	return sid, nil
}
