package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// QuestionHandler wires question and rubric item routes.
type QuestionHandler struct {
	questions service.QuestionService
	rubric    service.RubricService
	logger    zerolog.Logger
}

// NewQuestionHandler constructs the handler.
func NewQuestionHandler(questions service.QuestionService, rubric service.RubricService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questions: questions,
		rubric:    rubric,
		logger:    logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register attaches question and rubric endpoints to the API group.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Get("/assignments/:assignmentId/questions", h.list)
	router.Post("/assignments/:assignmentId/questions", h.createBatch)
	router.Put("/assignments/:assignmentId/questions", h.replace)
	router.Get("/questions/:id", h.get)
	router.Patch("/questions/:id", h.update)
	router.Delete("/questions/:id", h.delete)

	router.Get("/questions/:id/rubric", h.listRubric)
	router.Post("/questions/:id/rubric", h.createRubricItem)
	router.Put("/questions/:id/rubric", h.replaceRubric)
	router.Patch("/rubric-items/:itemId", h.updateRubricItem)
	router.Delete("/rubric-items/:itemId", h.deleteRubricItem)
}

func (h *QuestionHandler) list(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	questions, err := h.questions.List(requestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "questions retrieved", questions)
}

func (h *QuestionHandler) createBatch(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.QuestionBatchRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	questions, err := h.questions.CreateBatch(requestContext(c), actorFromContext(c), assignmentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "questions created", questions)
}

func (h *QuestionHandler) replace(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.QuestionReplaceRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	questions, err := h.questions.Replace(requestContext(c), actorFromContext(c), assignmentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "questions replaced", questions)
}

func (h *QuestionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	question, err := h.questions.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "question retrieved", question)
}

func (h *QuestionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.QuestionUpdateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	question, err := h.questions.Update(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "question updated", question)
}

func (h *QuestionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.questions.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "question deleted", fiber.Map{"id": id})
}

func (h *QuestionHandler) listRubric(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	items, err := h.rubric.List(requestContext(c), actorFromContext(c), id, c.QueryBool("include_inactive"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric retrieved", items)
}

func (h *QuestionHandler) createRubricItem(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.RubricItemCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	item, err := h.rubric.Create(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric item created", item)
}

func (h *QuestionHandler) replaceRubric(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload struct {
		Items []dto.RubricItemCreateRequest `json:"items"`
	}
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	items, err := h.rubric.Replace(requestContext(c), actorFromContext(c), id, payload.Items)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric replaced", items)
}

func (h *QuestionHandler) updateRubricItem(c *fiber.Ctx) error {
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.RubricItemUpdateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	item, err := h.rubric.Update(requestContext(c), actorFromContext(c), itemID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric item updated", item)
}

func (h *QuestionHandler) deleteRubricItem(c *fiber.Ctx) error {
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.rubric.Delete(requestContext(c), actorFromContext(c), itemID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric item deactivated", fiber.Map{"id": itemID})
}
