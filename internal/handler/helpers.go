package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	switch id := c.Locals("user_id").(type) {
	case uint:
		return id
	case int:
		if id < 0 {
			return 0
		}
		return uint(id)
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return role
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Namespace()] = fieldErr.Tag()
	}
	return details
}

func parseBody(c *fiber.Ctx, target interface{}) error {
	if err := c.BodyParser(target); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

// badRequestErrors are client mistakes reported verbatim with status 400.
var badRequestErrors = []error{
	grading.ErrInvalidSelection,
	grading.ErrInvalidRange,
	service.ErrInvalidPageMap,
	service.ErrInvalidDeadline,
	service.ErrEmptyAfterSanitize,
	service.ErrFileRequired,
	service.ErrUploadTooLarge,
	service.ErrUploadTypeNotAllowed,
	service.ErrNotEnrolled,
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	switch {
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, grading.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
