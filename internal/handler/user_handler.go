package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// UserHandler exposes the caller profile and user provisioning.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches user endpoints to the API group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Post("/users", middleware.RequireRole(models.RoleInstructor), h.create)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	user, err := h.service.Me(requestContext(c), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	user, err := h.service.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}
