package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/fieldnotes-app/fieldnotes/app/repository"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/database"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/ledger"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HandleAccountStatus returns balance, plan and subscription state for one
// identity. The lazy calendar reset runs first so accounts with an allowance
// see a fresh balance at the start of a period even if no renewal webhook
// arrived yet.
func HandleAccountStatus(c *fiber.Ctx) error {
	email := models.NormalizeEmail(c.Query("email"))
	if email == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "email is required")
	}

	led := ledger.New(database.GetDB())
	if _, err := led.ResetIfDue(email, time.Now()); err != nil {
		log.Printf("account: reset check failed for %s: %v", email, err)
	}

	account, err := repository.GetGlobalFactory().GetAccountRepository().GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No account for this email")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}

	return c.JSON(fiber.Map{
		"email":               account.Email,
		"plan":                account.Plan,
		"balance":             account.Balance,
		"monthly_allowance":   account.MonthlyAllowance,
		"subscription_status": account.SubscriptionStatus,
		"current_period_end":  formatTimePtr(account.CurrentPeriodEnd),
		"email_verified":      account.IsVerified(),
		"pin_set":             account.HasPIN(),
	})
}

type setPINRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// HandleSetPIN sets or rotates the account PIN. Verification must have
// completed first, and rotating an existing PIN requires presenting the
// current one.
func HandleSetPIN(c *fiber.Ctx) error {
	var req setPINRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "email is required")
	}
	if len(req.PIN) < 4 || len(req.PIN) > 32 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "PIN must be between 4 and 32 characters")
	}

	repo := repository.GetGlobalFactory().GetAccountRepository()
	account, err := repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No account for this email")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}
	if !account.IsVerified() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Verify your email before setting a PIN")
	}
	if err := requirePIN(c, account); err != nil {
		return rejectPIN(c, err)
	}

	if err := account.SetPIN(req.PIN); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to set PIN")
	}
	if err := repo.Update(account); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to persist PIN")
	}
	return c.JSON(fiber.Map{"ok": true})
}
