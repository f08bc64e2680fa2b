package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// JWTProtected verifies HMAC bearer tokens and exposes the caller as
// user_id and user_role locals. Tokens are issued elsewhere. Websocket
// upgrades may pass the token as the access_token query parameter.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok && c.Get(fiber.HeaderUpgrade) != "" {
			tokenString = strings.TrimSpace(c.Query("access_token"))
			ok = tokenString != ""
		}
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing or malformed")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID, ok := extractUserIDFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals("user_id", userID)
		c.Locals("user_role", extractUserRoleFromClaims(claims))

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const bearer = "bearer "
	if len(header) <= len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}

func extractUserIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id"} {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil && normalized > 0 {
				return normalized, true
			}
		}
	}
	return 0, false
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

// extractUserRoleFromClaims resolves the global role. A role claim wins;
// otherwise the is_instructor flag decides, defaulting to student.
func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	if value, ok := claims["role"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case models.RoleInstructor:
			return models.RoleInstructor
		case models.RoleStudent:
			return models.RoleStudent
		}
	}
	if flag, ok := claims["is_instructor"].(bool); ok && flag {
		return models.RoleInstructor
	}
	return models.RoleStudent
}
