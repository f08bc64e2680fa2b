package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny        = "any"
	AuthRoleInstructor = models.RoleInstructor
	AuthRoleStudent    = models.RoleStudent
)

// AuthOptions configures the WithAuth guard.
type AuthOptions struct {
	Role string
}

// WithAuth wraps a single handler with an authentication guard and an
// optional global role requirement. It expects JWTProtected to have run.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role != AuthRoleAny && normalizeRoleValue(c.Locals("user_role")) != role {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required_role": role})
		}
		return handler(c)
	}
}
