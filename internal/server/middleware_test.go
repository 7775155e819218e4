package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"feedpulse/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func middlewareApp(origins string) *fiber.App {
	srv := &Server{config: &config.Config{AllowedOrigins: origins}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/api/posts", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/api/posts", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	return app
}

func send(t *testing.T, app *fiber.App, method, origin string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/api/posts", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSetupMiddleware_SecurityAndRequestHeaders(t *testing.T) {
	app := middlewareApp("")

	resp := send(t, app, http.MethodGet, "http://localhost:5173")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
	assert.Equal(t, "http://localhost:5173", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	resp = send(t, app, http.MethodGet, "https://elsewhere.example")
	assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestSetupMiddleware_LimiterKeepsCORSAndSparesPreflight(t *testing.T) {
	const origin = "https://feed.example"
	app := middlewareApp(origin)

	for i := 0; i < 100; i++ {
		resp := send(t, app, http.MethodPost, origin)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "request %d", i)
	}

	limited := send(t, app, http.MethodGet, origin)
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, origin, limited.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	preflight := send(t, app, http.MethodOptions, origin)
	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, origin, preflight.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, preflight.Header.Get(fiber.HeaderAccessControlAllowMethods), http.MethodPost)
}
