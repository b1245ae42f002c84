package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/gofiber/fiber/v2"
)

var (
	errPINRequired = errors.New("pin required")
	errPINInvalid  = errors.New("pin invalid")
)

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// requirePIN enforces the account's secondary-auth PIN when one is set. The
// PIN travels in the X-Account-PIN header. It returns a sentinel, never a
// written response: c.JSON returns nil on success, so writing the rejection
// here would hand the caller a nil error and disarm its guard.
func requirePIN(c *fiber.Ctx, account *models.Account) error {
	if !account.HasPIN() {
		return nil
	}
	pin := strings.TrimSpace(c.Get("X-Account-PIN"))
	if pin == "" {
		return errPINRequired
	}
	if !account.CheckPIN(pin) {
		return errPINInvalid
	}
	return nil
}

// rejectPIN translates a requirePIN sentinel into the JSON rejection.
func rejectPIN(c *fiber.Ctx, err error) error {
	if errors.Is(err, errPINRequired) {
		return jsonError(c, fiber.StatusUnauthorized, "pin_required", "This account requires a PIN")
	}
	return jsonError(c, fiber.StatusUnauthorized, "pin_invalid", "Incorrect PIN")
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
