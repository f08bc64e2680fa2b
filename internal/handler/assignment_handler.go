package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// AssignmentHandler wires assignment HTTP routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the API group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Get("/courses/:courseId/assignments", h.list)
	router.Post("/courses/:courseId/assignments", h.create)
	router.Get("/assignments/:id", h.get)
	router.Patch("/assignments/:id", h.update)
	router.Delete("/assignments/:id", h.delete)
	router.Post("/assignments/:id/template", h.uploadTemplate)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.service.List(requestContext(c), actorFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.AssignmentCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	assignment, err := h.service.Create(requestContext(c), actorFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.AssignmentUpdateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	assignment, err := h.service.Update(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": id})
}

func (h *AssignmentHandler) uploadTemplate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.logger, service.ErrFileRequired)
	}

	assignment, err := h.service.UploadTemplate(requestContext(c), actorFromContext(c), id, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "template uploaded", assignment)
}
