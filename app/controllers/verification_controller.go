package controllers

import (
	"errors"
	"log"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/fieldnotes-app/fieldnotes/app/repository"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/database"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/entitlements"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/ledger"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/mail"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/verification"
	"github.com/gofiber/fiber/v2"
)

type verifyRequestBody struct {
	Email string `json:"email"`
}

// HandleVerifyRequest issues a fresh one-time code and mails it out. The
// account is created on first sight. Reissuing invalidates any previous code.
func HandleVerifyRequest(c *fiber.Ctx) error {
	var req verifyRequestBody
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
	if err := (&models.Account{Email: account.Email, Plan: account.Plan}).Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid email address")
	}

	flow := verification.New(database.GetDB())
	code, err := flow.IssueCode(account.Email)
	if err != nil {
		if errors.Is(err, verification.ErrAlreadyVerified) {
			return jsonError(c, fiber.StatusConflict, "already_verified", "This email is already verified")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not issue verification code")
	}

	// Mail delivery is best effort; the code is already on record.
	go func(to, code string) {
		if err := mail.SendVerificationCode(to, code); err != nil {
			log.Printf("verification: failed to send code to %s: %v", to, err)
		}
	}(account.Email, code)

	return c.JSON(fiber.Map{"ok": true})
}

type verifyConfirmBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleVerifyConfirm checks the candidate code. On a match it marks the
// account verified and applies the one-time trial grant; the two steps are
// separate atomic updates, and the grant is idempotent so a crash or retry
// between them cannot double-credit.
func HandleVerifyConfirm(c *fiber.Ctx) error {
	var req verifyConfirmBody
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Code == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "email and code are required")
	}

	db := database.GetDB()
	flow := verification.New(db)
	if err := flow.CheckCode(email, req.Code); err != nil {
		switch {
		case errors.Is(err, verification.ErrAccountNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "No account for this email")
		case errors.Is(err, verification.ErrAlreadyVerified):
			// Recover a crash between mark-verified and the trial grant: the
			// grant is idempotent, so re-running it here is safe.
			if _, grantErr := ledger.New(db).GrantTrialOnce(email, entitlements.TrialCredits); grantErr != nil {
				log.Printf("verification: recovery trial grant failed for %s: %v", email, grantErr)
			}
			return jsonError(c, fiber.StatusConflict, "already_verified", "This email is already verified")
		case errors.Is(err, verification.ErrTooManyAttempts):
			return jsonError(c, fiber.StatusTooManyRequests, "too_many_attempts", "Too many attempts, request a new code")
		case errors.Is(err, verification.ErrNoActiveCode):
			return jsonError(c, fiber.StatusBadRequest, "no_active_code", "No active code, request a new one")
		case errors.Is(err, verification.ErrExpired):
			return jsonError(c, fiber.StatusBadRequest, "code_expired", "Code expired, request a new one")
		case errors.Is(err, verification.ErrIncorrectCode):
			return jsonError(c, fiber.StatusBadRequest, "incorrect_code", "Incorrect code")
		default:
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Verification failed")
		}
	}

	if err := flow.MarkVerified(email); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Verification failed")
	}

	led := ledger.New(db)
	granted, err := led.GrantTrialOnce(email, entitlements.TrialCredits)
	if err != nil {
		// Verified but not granted; the grant is retried safely on next confirm.
		log.Printf("verification: trial grant failed for %s: %v", email, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Verified, but trial grant failed")
	}

	balance, err := led.Balance(email)
	if err != nil {
		log.Printf("verification: balance read failed for %s: %v", email, err)
	}
	return c.JSON(fiber.Map{"ok": true, "trial_granted": granted, "balance": balance})
}
