package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", AppSecretMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAppSecretMiddleware(t *testing.T) {
	t.Setenv("APP_SHARED_SECRET", "test-secret")
	app := newTestApp()

	tests := []struct {
		name       string
		headerKey  string
		headerVal  string
		wantStatus int
	}{
		{name: "valid header", headerKey: "X-App-Secret", headerVal: "test-secret", wantStatus: fiber.StatusOK},
		{name: "valid bearer", headerKey: "Authorization", headerVal: "Bearer test-secret", wantStatus: fiber.StatusOK},
		{name: "wrong secret", headerKey: "X-App-Secret", headerVal: "wrong", wantStatus: fiber.StatusUnauthorized},
		{name: "wrong bearer", headerKey: "Authorization", headerVal: "Bearer wrong", wantStatus: fiber.StatusUnauthorized},
		{name: "missing", wantStatus: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/protected", nil)
		if tt.headerKey != "" {
			req.Header.Set(tt.headerKey, tt.headerVal)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test error: %v", tt.name, err)
		}
		if resp.StatusCode != tt.wantStatus {
			t.Fatalf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.wantStatus)
		}
	}
}

func TestAppSecretMiddlewareUnconfigured(t *testing.T) {
	t.Setenv("APP_SHARED_SECRET", "")
	app := newTestApp()

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("X-App-Secret", "anything")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when the secret is unconfigured", resp.StatusCode)
	}
}
