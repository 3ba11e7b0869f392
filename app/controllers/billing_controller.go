package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/bossboard/bossboard/internal/pkg/billing"
	"github.com/bossboard/bossboard/internal/pkg/metrics"
)

const webhookTimeout = 15 * time.Second

// WebhookProcessor applies one provider delivery.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, body []byte, signatureValid bool) (*billing.WebhookResult, error)
}

// BillingController receives Paddle webhooks. Signature checks only run when
// a secret is configured.
type BillingController struct {
	svc    WebhookProcessor
	secret string
	now    func() time.Time
}

func NewBillingController(svc WebhookProcessor, webhookSecret string) *BillingController {
	return &BillingController{svc: svc, secret: webhookSecret, now: time.Now}
}

func (bc *BillingController) HandlePaddleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	signatureValid := false
	if bc.secret != "" {
		err := billing.VerifyPaddleSignature(rawBody, c.Get("Paddle-Signature"), bc.secret, bc.now(), billing.DefaultSignatureTolerance)
		if err != nil {
			log.Warnf("[Paddle] Rejected webhook from %s: %v", ClientIP(c), err)
			metrics.WebhookEvents.WithLabelValues("unverified", "rejected").Inc()
			return jsonError(c, fiber.StatusUnauthorized, "invalid_signature")
		}
		signatureValid = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	result, err := bc.svc.HandleWebhook(ctx, rawBody, signatureValid)
	switch {
	case errors.Is(err, billing.ErrMalformedJSON):
		return jsonError(c, fiber.StatusBadRequest, "Invalid JSON")
	case errors.Is(err, billing.ErrInvalidPayload):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": err.Error()})
	case err != nil:
		// non-2xx so the provider redelivers
		log.Errorf("[Paddle] Webhook processing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "webhook_processing_failed")
	}

	if result.Duplicate {
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}
	return c.JSON(fiber.Map{"received": true})
}
