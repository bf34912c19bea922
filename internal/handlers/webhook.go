package handlers

import (
	"log"
	"strings"

	"pathfinder/internal/middleware"
	"pathfinder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler handles DodoPayments webhooks
type WebhookHandler struct {
	paymentService *services.PaymentService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(paymentService *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
	}
}

// HandleDodoWebhook handles incoming webhooks from DodoPayments
// POST /api/webhooks/dodo
// DodoPayments uses Standard Webhooks format with headers:
// - webhook-id: unique message ID
// - webhook-signature: v1,<base64_signature>
// - webhook-timestamp: unix timestamp
func (h *WebhookHandler) HandleDodoWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) == 0 {
		log.Printf("❌ Webhook missing payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing payload",
		})
	}

	event, err := h.paymentService.VerifyAndParseWebhook(payload, middleware.RequestHeaders(c))
	if err != nil {
		log.Printf("❌ Webhook verification failed: %v", err)

		// Distinguish between parse errors (400) and auth errors (401)
		if strings.Contains(err.Error(), "parse") || strings.Contains(err.Error(), "missing id or type") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid payload format",
			})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	duplicate, err := h.paymentService.HandleWebhookEvent(c.UserContext(), event)
	if err != nil {
		log.Printf("❌ Webhook processing error: %v", err)

		// Return 500 for processing failures to allow DodoPayments to retry
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":    "Failed to process webhook",
			"event_id": event.ID,
			"type":     event.Type,
		})
	}

	if duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"received": true,
			"message":  "Event already processed (idempotent)",
		})
	}

	log.Printf("✅ Webhook event processed: %s (ID: %s)", event.Type, event.ID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received": true,
		"event_id": event.ID,
		"type":     event.Type,
	})
}
