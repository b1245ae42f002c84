package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/fieldnotes-app/fieldnotes/app/repository"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/billing"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/database"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/env"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type billingSessionRequest struct {
	Email string `json:"email"`
}

// HandleCreateCheckoutSession creates a subscription checkout session for an
// identity and returns the redirect URL. The account is created on first
// sight so the later webhook always finds a row to link.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req billingSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "email is required")
	}

	account, err := repository.GetGlobalFactory().GetAccountRepository().GetOrCreateByEmail(email)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}

	client := billing.NewStripeClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := client.CreateCheckoutSession(ctx, account.Email)
	if err != nil {
		log.Printf("billing: checkout session creation failed for %s: %v", account.Email, err)
		return jsonError(c, fiber.StatusBadGateway, "checkout_failed", "Could not start checkout")
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleCreatePortalSession creates a customer portal session. It requires a
// linked provider customer; identities that never subscribed get a 400.
func HandleCreatePortalSession(c *fiber.Ctx) error {
	var req billingSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "email is required")
	}

	account, err := repository.GetGlobalFactory().GetAccountRepository().GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusBadRequest, "no_billing_customer", "No billing customer found. Subscribe first")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}
	if account.ProviderCustomerRef == "" {
		return jsonError(c, fiber.StatusBadRequest, "no_billing_customer", "No billing customer found. Subscribe first")
	}
	if err := requirePIN(c, account); err != nil {
		return rejectPIN(c, err)
	}

	client := billing.NewStripeClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := client.CreatePortalSession(ctx, account.ProviderCustomerRef)
	if err != nil {
		log.Printf("billing: portal session creation failed for %s: %v", account.Email, err)
		return jsonError(c, fiber.StatusBadGateway, "portal_failed", "Could not open the billing portal")
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleStripeWebhook is the single webhook entry point. The signature check
// against the raw payload is the only gate excluding forged events; a bad
// signature is rejected with a 400 before any side effect. Processing errors
// return a 5xx with the event row left unprocessed so the provider retries.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	if !billing.VerifyStripeWebhookSignature(rawBody, signature, secret, time.Now()) {
		log.Printf("billing: rejected webhook with invalid signature (%d bytes)", len(rawBody))
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.HandleEvent(ctx, rawBody)
	if err != nil {
		log.Printf("billing: webhook processing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "webhook_processing_failed", "Event processing failed")
	}
	if result.Duplicate {
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if result.Ignored {
		return c.JSON(fiber.Map{"ok": true, "ignored": true})
	}
	return c.JSON(fiber.Map{"received": true})
}

// HandleHealth reports process liveness.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
