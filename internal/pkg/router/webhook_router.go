package router

import (
	"github.com/fieldnotes-app/fieldnotes/app/controllers"
	"github.com/gofiber/fiber/v2"
)

type WebhookRouter struct {
}

// InstallRouter registers provider callback endpoints. These authenticate
// via payload signatures, not the app shared secret.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhook/stripe", controllers.HandleStripeWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
