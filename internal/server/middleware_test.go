package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"puzzlemarket/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webOrigin = "http://localhost:5173"

func newMiddlewareApp(t *testing.T) *fiber.App {
	t.Helper()
	srv := &Server{config: &config.Config{AllowedOrigins: webOrigin}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Post("/api/conversations/:id/messages", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func send(t *testing.T, app *fiber.App, method string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/api/conversations/9/messages", nil)
	req.Header.Set("Origin", webOrigin)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSetupMiddleware_PreflightAllowsLocaleHeader(t *testing.T) {
	app := newMiddlewareApp(t)

	resp := send(t, app, http.MethodOptions, map[string]string{
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "authorization,accept-language,content-type",
	})

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, webOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Accept-Language")
}

func TestSetupMiddleware_GlobalLimiter(t *testing.T) {
	app := newMiddlewareApp(t)

	var last *http.Response
	for i := 0; i <= 100; i++ {
		last = send(t, app, http.MethodPost, nil)
	}
	assert.Equal(t, fiber.StatusTooManyRequests, last.StatusCode)
	assert.Equal(t, webOrigin, last.Header.Get("Access-Control-Allow-Origin"), "429 must stay readable by the web client")

	preflight := send(t, app, http.MethodOptions, map[string]string{
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, fiber.StatusNoContent, preflight.StatusCode, "preflight is never limited")
}

func TestSetupMiddleware_FullApp(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Len(t, resp.Header.Get("X-Trace-ID"), 32)
}
