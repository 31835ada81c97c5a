// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"tripwise-backend/services"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// UserContextMiddleware turns the gateway's identity headers into a
// services.Identity on c.Locals. Mounted on /s/, where a user is required.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		id := services.Identity{
			UserID:   userID,
			Role:     primaryRole(c.Get("X-User-Role"), c.Get("X-User-Roles")),
			Username: strings.TrimSpace(c.Get("X-User-Name")),
			Phone:    strings.TrimSpace(c.Get("X-User-Phone")),
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// primaryRole prefers the single-role header. With only a role list, an
// admin role wins over anything else.
func primaryRole(role, roles string) string {
	if role = strings.TrimSpace(role); role != "" {
		return role
	}
	first := ""
	for _, r := range strings.Split(roles, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if (services.Identity{Role: r}).IsAdmin() {
			return r
		}
		if first == "" {
			first = r
		}
	}
	return first
}

// IdentityFrom returns the caller set by UserContextMiddleware, or a zero
// Identity when the route is not secured.
func IdentityFrom(c *fiber.Ctx) services.Identity {
	id, _ := c.Locals(identityKey).(services.Identity)
	return id
}

// RequireAdmin rejects callers without an admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := IdentityFrom(c)
		if !id.IsAdmin() {
			log.Printf("🚫 [USER_CTX] %s (role %q) denied admin route %s", id.UserID, id.Role, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
			})
		}
		return c.Next()
	}
}
