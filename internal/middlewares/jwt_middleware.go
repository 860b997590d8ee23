package middlewares

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	claimsLocalKey = "jwt_claims"

	jwtLeeway = 30 * time.Second
)

// JWTMiddleware accepts bearer tokens signed with HS256 and secret. Tokens
// must carry an expiry.
func JWTMiddleware(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(jwtLeeway),
	)

	keyFunc := func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}

	return func(c fiber.Ctx) error {
		tokenString, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Bearer token required",
			})
		}

		claims := &jwt.RegisteredClaims{}

		if _, err := parser.ParseWithClaims(tokenString, claims, keyFunc); err != nil {
			log.Warn().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("JWT verification failed")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(claimsLocalKey, claims)

		log.Debug().Str("subject", claims.Subject).Str("path", c.Path()).Msg("JWT verified")

		return c.Next()
	}
}

// Claims returns the verified token claims of the request, if any.
func Claims(c fiber.Ctx) (*jwt.RegisteredClaims, bool) {
	claims, ok := c.Locals(claimsLocalKey).(*jwt.RegisteredClaims)
	return claims, ok
}
