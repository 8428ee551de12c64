package handlers

import (
	"bytes"
	"encoding/xml"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openslot/openslot-backend/internal/models"
	"github.com/openslot/openslot-backend/internal/services"
	"github.com/openslot/openslot-backend/internal/storage"
	"github.com/openslot/openslot-backend/internal/utils"
)

// SMSHandler processes the carrier's inbound-message webhook and the
// delivery-status callback.
type SMSHandler struct {
	store  storage.Store
	router *services.ReplyRouter
}

// NewSMSHandler creates an SMS webhook handler.
func NewSMSHandler(store storage.Store, router *services.ReplyRouter) *SMSHandler {
	return &SMSHandler{store: store, router: router}
}

// TwilioWebhookPayload is the inbound message form Twilio posts.
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"`
	To         string `form:"To"`
	Body       string `form:"Body"`
	NumMedia   string `form:"NumMedia"`
}

// HandleInbound routes one inbound SMS and replies with TwiML. The signature
// middleware has already validated the request by the time this runs.
func (h *SMSHandler) HandleInbound(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing inbound SMS webhook: %v", err)
		return twimlReply(c, "")
	}

	if payload.Body == "" || payload.From == "" {
		return twimlReply(c, "")
	}

	from, err := utils.NormalizePhone(payload.From)
	if err != nil {
		log.Printf("⚠️  Inbound SMS from unnormalizable number %q", payload.From)
		return twimlReply(c, "")
	}

	log.Printf("📱 SMS from %s: %s", from, payload.Body)

	if err := h.store.CreateMessageLog(&models.MessageLog{
		MessageSID: payload.MessageSid,
		Direction:  models.DirectionInbound,
		Body:       payload.Body,
		FromNumber: from,
		ToNumber:   payload.To,
		Status:     string(services.DeliveryDelivered),
	}); err != nil {
		log.Printf("⚠️  Failed to log inbound message %s: %v", payload.MessageSid, err)
	}

	reply, err := h.router.HandleInbound(from, payload.Body, time.Now())
	if err != nil {
		log.Printf("❌ Error processing message from %s: %v", from, err)
		reply = "❌ Sorry, something went wrong. Please try again."
	}

	return twimlReply(c, reply)
}

// StatusCallbackPayload is the delivery-status form Twilio posts.
type StatusCallbackPayload struct {
	MessageSid    string `form:"MessageSid"`
	MessageStatus string `form:"MessageStatus"`
	ErrorCode     string `form:"ErrorCode"`
	ErrorMessage  string `form:"ErrorMessage"`
}

// HandleStatusCallback records a delivery receipt. It always acknowledges
// with a 200, even for unknown message SIDs; an error here would just make
// the carrier retry forever.
func (h *SMSHandler) HandleStatusCallback(c *fiber.Ctx) error {
	var payload StatusCallbackPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing status callback: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	status := services.MapCarrierStatus(payload.MessageStatus)

	msg, err := h.store.GetMessageLogBySID(payload.MessageSid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("⚠️  Delivery receipt for unknown message %s (status %s)", payload.MessageSid, status)
		} else {
			log.Printf("❌ Failed to look up message %s: %v", payload.MessageSid, err)
		}
		return c.SendStatus(fiber.StatusOK)
	}

	msg.Status = string(status)
	msg.ErrorCode = payload.ErrorCode
	msg.ErrorMessage = payload.ErrorMessage
	if err := h.store.UpdateMessageLog(msg); err != nil {
		log.Printf("❌ Failed to update message %s: %v", payload.MessageSid, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// twimlReply writes the minimal carrier reply markup. An empty reply sends an
// empty <Response/> so nothing is texted back.
func twimlReply(c *fiber.Ctx, reply string) error {
	c.Set("Content-Type", "text/xml")
	if reply == "" {
		return c.SendString(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
	}
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(reply)); err != nil {
		return c.SendString(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
	}
	return c.SendString(`<?xml version="1.0" encoding="UTF-8"?><Response><Message>` + escaped.String() + `</Message></Response>`)
}
