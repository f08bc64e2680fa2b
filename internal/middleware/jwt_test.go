package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newJWTApp(captured *fiber.Map) *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		*captured = fiber.Map{"user_id": c.Locals("user_id"), "user_role": c.Locals("user_role")}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func requestWithToken(t *testing.T, app *fiber.App, header string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestJWTProtectedSetsIdentity(t *testing.T) {
	var captured fiber.Map
	app := newJWTApp(&captured)

	token := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "42",
		"role": "Instructor",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	resp := requestWithToken(t, app, "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(42), captured["user_id"])
	require.Equal(t, "instructor", captured["user_role"])
}

func TestJWTProtectedDerivesRoleFromInstructorFlag(t *testing.T) {
	var captured fiber.Map
	app := newJWTApp(&captured)

	token := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": float64(7), "is_instructor": true}, testSecret)
	resp := requestWithToken(t, app, "bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(7), captured["user_id"])
	require.Equal(t, "instructor", captured["user_role"])

	token = signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "8", "role": "admin"}, testSecret)
	resp = requestWithToken(t, app, "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "student", captured["user_role"])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	var captured fiber.Map
	app := newJWTApp(&captured)

	expired := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Minute).Unix()}, testSecret)
	wrongSecret := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}, "other")
	noSubject := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"role": "student"}, testSecret)

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer " + expired, "Bearer " + wrongSecret, "Bearer " + noSubject} {
		resp := requestWithToken(t, app, header)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, header)
	}
	require.Nil(t, captured)
}
