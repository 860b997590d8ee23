package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware rejects requests that do not carry apiKey in the X-API-Key
// header or as a bearer token.
func APIKeyMiddleware(apiKey string) fiber.Handler {
	expected := []byte(apiKey)

	return func(c fiber.Ctx) error {
		provided := c.Get(APIKeyHeader)
		if provided == "" {
			provided, _ = strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("API key verification failed")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}
