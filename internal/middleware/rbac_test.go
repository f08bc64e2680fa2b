package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newRoleApp(role interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(RequireRole("instructor"))
	app.Get("/courses", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsInstructor(t *testing.T) {
	resp, err := newRoleApp(" Instructor ").Test(httptest.NewRequest(http.MethodGet, "/courses", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsStudent(t *testing.T) {
	resp, err := newRoleApp("student").Test(httptest.NewRequest(http.MethodGet, "/courses", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	resp, err := newRoleApp(nil).Test(httptest.NewRequest(http.MethodGet, "/courses", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
