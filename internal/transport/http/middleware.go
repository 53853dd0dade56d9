package http

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/das622/appointment-booking-api/internal/domain"
)

const principalKey = "principal"

// protected verifies the bearer token and stashes the authenticated
// Principal in the request locals.
func protected(secret []byte) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: secret,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid token",
				})
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid token claims",
				})
			}

			sub, _ := claims["sub"].(string)
			userID, err := uuid.Parse(sub)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid subject claim",
				})
			}
			role, _ := claims["role"].(string)
			if !domain.Role(role).Valid() {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid role claim",
				})
			}

			c.Locals(principalKey, domain.Principal{UserID: userID, Role: domain.Role(role)})
			return c.Next()
		},
	})
}

func principalFrom(c *fiber.Ctx) (domain.Principal, bool) {
	p, ok := c.Locals(principalKey).(domain.Principal)
	return p, ok
}

// requireRole gates a route to one role. Runs after protected.
func requireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := principalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		if p.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}
		return c.Next()
	}
}
