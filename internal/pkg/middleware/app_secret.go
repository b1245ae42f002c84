package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/fieldnotes-app/fieldnotes/internal/pkg/env"
	"github.com/gofiber/fiber/v2"
)

// AppSecretMiddleware gates the app-facing API behind the shared secret the
// front end presents on every call. The webhook route is excluded; it is
// authenticated by the provider signature instead.
func AppSecretMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := strings.TrimSpace(env.GetEnv("APP_SHARED_SECRET", ""))
		if secret == "" {
			log.Print("app secret middleware: APP_SHARED_SECRET not configured, rejecting all requests")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Service misconfigured"})
		}

		presented := extractAppSecret(c)
		if presented == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing app secret"})
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid app secret"})
		}
		return c.Next()
	}
}

func extractAppSecret(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get("X-App-Secret")); v != "" {
		return v
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
