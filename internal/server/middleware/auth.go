package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Nika0000/publisher-cli/internal/services"
)

func hasRole(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// AuthRequired checks a JWT from Authorization: Bearer.
func AuthRequired(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		claims, err := services.ParseToken(strings.TrimPrefix(authz, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		if !hasRole(claims.Role, roles) {
			return fiber.ErrForbidden
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}
