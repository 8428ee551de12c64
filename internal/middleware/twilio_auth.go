package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"log"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// ValidateTwilioSignature validates that a webhook request is from Twilio.
// The auth token is injected at setup; if it is missing the middleware fails
// closed with a server configuration error, never open.
func ValidateTwilioSignature(authToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authToken == "" {
			log.Println("ERROR: Twilio auth token not configured, rejecting webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		formParams := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			formParams[string(key)] = string(value)
		})

		expected := CalculateTwilioSignature(authToken, getFullURL(c), formParams)
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			log.Printf("🚨 Invalid webhook signature from %s for %s", c.IP(), c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// getFullURL reconstructs the URL Twilio signed.
func getFullURL(c *fiber.Ctx) string {
	protocol := "https"
	if c.Protocol() == "http" {
		protocol = "http"
	}
	return protocol + "://" + c.Hostname() + c.Path()
}

// CalculateTwilioSignature computes Twilio's documented webhook signature:
// HMAC-SHA1 over the URL concatenated with the form parameters sorted by key
// and appended as key+value, base64 encoded.
func CalculateTwilioSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := url
	for _, k := range keys {
		data += k + params[k]
	}

	h := hmac.New(sha1.New, []byte(authToken))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
