package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(APIKeyMiddleware("s3cret"))
	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{name: "missing key", headers: nil, expected: fiber.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{APIKeyHeader: "nope"}, expected: fiber.StatusUnauthorized},
		{name: "header key", headers: map[string]string{APIKeyHeader: "s3cret"}, expected: fiber.StatusOK},
		{name: "bearer token", headers: map[string]string{"Authorization": "Bearer s3cret"}, expected: fiber.StatusOK},
		{name: "bearer with wrong token", headers: map[string]string{"Authorization": "Bearer s3cre"}, expected: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}
