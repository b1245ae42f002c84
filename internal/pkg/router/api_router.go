package router

import (
	"github.com/fieldnotes-app/fieldnotes/app/controllers"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

// InstallRouter registers the app-facing API. Everything under /api sits
// behind the shared-secret gate; /health stays open for probes.
func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	api := app.Group("/api", limiter.New(), middleware.AppSecretMiddleware())

	api.Get("/account", controllers.HandleAccountStatus)
	api.Post("/account/pin", controllers.HandleSetPIN)

	api.Post("/verify/request", controllers.HandleVerifyRequest)
	api.Post("/verify/confirm", controllers.HandleVerifyConfirm)

	api.Post("/notes/generate", controllers.HandleGenerateNotes)

	api.Post("/billing/checkout-session", controllers.HandleCreateCheckoutSession)
	api.Post("/billing/portal-session", controllers.HandleCreatePortalSession)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
