package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/fieldnotes-app/fieldnotes/app/repository"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/cache"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/database"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/dedup"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/generation"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/ledger"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/notes"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var notesGuard = dedup.New(nil, dedup.DefaultCooldown)

// InitNotesGuard attaches the shared redis client to the request dedup guard.
// Called once at startup; until then the guard runs in-process only.
func InitNotesGuard() {
	notesGuard = dedup.New(cache.GetClient(), dedup.DefaultCooldown)
}

type generateRequest struct {
	Email       string `json:"email"`
	Narrative   string `json:"narrative"`
	ClientLabel string `json:"client_label"`
	Mode        string `json:"mode"`
	Reflection  bool   `json:"reflection"`
	Intensity   string `json:"intensity"`
}

// HandleGenerateNotes runs the spend-gated generation flow. The deduction
// happens before the (slow) generation call and is credited back if that call
// fails, so a failed session costs nothing and concurrent double-submits can
// never overdraw the balance.
func HandleGenerateNotes(c *fiber.Ctx) error {
	var req generateRequest
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
			return jsonError(c, fiber.StatusNotFound, "not_found", "No account for this email")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}
	if err := requirePIN(c, account); err != nil {
		return rejectPIN(c, err)
	}

	db := database.GetDB()
	led := ledger.New(db)
	if _, err := led.ResetIfDue(email, time.Now()); err != nil {
		log.Printf("notes: reset check failed for %s: %v", email, err)
	}

	svc := notes.NewService(notesGuard, led, generation.NewClientFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	note, err := svc.Generate(ctx, notes.Request{
		Email:       email,
		Narrative:   req.Narrative,
		ClientLabel: req.ClientLabel,
		Mode:        req.Mode,
		Reflection:  req.Reflection,
		Intensity:   req.Intensity,
	})
	if err != nil {
		switch {
		case errors.Is(err, notes.ErrEmptyNarrative):
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Please enter a session narrative first")
		case errors.Is(err, notes.ErrDuplicateRequest):
			return jsonError(c, fiber.StatusTooManyRequests, "duplicate_request", "An identical request was just submitted, please wait a moment")
		case errors.Is(err, notes.ErrInsufficientCredits):
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_credits", "No credits remaining. Subscribe or wait for your next cycle")
		default:
			log.Printf("notes: generation failed for %s: %v", email, err)
			return jsonError(c, fiber.StatusBadGateway, "generation_failed", "The AI could not generate output. Please try again; no credit was used")
		}
	}

	return c.JSON(note)
}
