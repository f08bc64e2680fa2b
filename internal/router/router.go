package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bargeh-api/internal/config"
	"github.com/noah-isme/bargeh-api/internal/handler"
	"github.com/noah-isme/bargeh-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	UserHandler        *handler.UserHandler
	CourseHandler      *handler.CourseHandler
	AssignmentHandler  *handler.AssignmentHandler
	QuestionHandler    *handler.QuestionHandler
	SubmissionHandler  *handler.SubmissionHandler
	GradingHandler     *handler.GradingHandler
	GradingFeedHandler *handler.GradingFeedHandler
	HealthProbes       map[string]handler.HealthProbe
	JWTMiddleware      fiber.Handler
	ExposeMetrics      bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	if deps.ExposeMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	// Registered before the auth middleware so it stays public.
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := api.Group("", jwtMiddleware)

	if deps.UserHandler != nil {
		deps.UserHandler.Register(protected)
	}
	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(protected)
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(protected)
	}
	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(protected)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(protected)
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(protected)
	}
	if deps.GradingFeedHandler != nil {
		deps.GradingFeedHandler.Register(protected)
	}
}
