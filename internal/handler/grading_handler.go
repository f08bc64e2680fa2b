package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// GradingHandler wires grade, progress, navigation and statistics routes.
type GradingHandler struct {
	grading service.GradingService
	stats   service.GradingStatsService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading service.GradingService, stats service.GradingStatsService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		stats:   stats,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the API group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/submissions/:submissionId/questions/:questionId/grade", h.getGrade)
	router.Put("/submissions/:submissionId/questions/:questionId/grade",
		middleware.RateLimit("grade_update", 120, time.Minute), h.updateGrade)
	router.Get("/submissions/:submissionId/questions/:questionId/navigation", h.navigation)

	router.Get("/questions/:questionId/progress", h.questionProgress)
	router.Get("/questions/:questionId/submissions", h.questionSubmissions)

	router.Get("/assignments/:assignmentId/statistics", h.statistics)
	router.Get("/assignments/:assignmentId/grades", h.studentGrades)
}

func (h *GradingHandler) gradingIDs(c *fiber.Ctx) (uint, uint, error) {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return 0, 0, err
	}
	questionID, err := parseUintParam(c, "questionId")
	if err != nil {
		return 0, 0, err
	}
	return submissionID, questionID, nil
}

func (h *GradingHandler) getGrade(c *fiber.Ctx) error {
	submissionID, questionID, err := h.gradingIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.grading.GetGrade(requestContext(c), actorFromContext(c), submissionID, questionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if detail.Created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grade created", detail)
	}
	return utils.SendSuccess(c, "grade retrieved", detail)
}

func (h *GradingHandler) updateGrade(c *fiber.Ctx) error {
	submissionID, questionID, err := h.gradingIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.GradeUpdateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	grade, err := h.grading.UpdateGrade(requestContext(c), actorFromContext(c), submissionID, questionID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "grade updated", grade)
}

func (h *GradingHandler) navigation(c *fiber.Ctx) error {
	submissionID, questionID, err := h.gradingIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	nav, err := h.stats.Navigation(requestContext(c), actorFromContext(c), submissionID, questionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "navigation retrieved", nav)
}

func (h *GradingHandler) questionProgress(c *fiber.Ctx) error {
	questionID, err := parseUintParam(c, "questionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	progress, err := h.stats.QuestionProgress(requestContext(c), actorFromContext(c), questionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *GradingHandler) questionSubmissions(c *fiber.Ctx) error {
	questionID, err := parseUintParam(c, "questionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	rows, err := h.stats.QuestionSubmissions(requestContext(c), actorFromContext(c), questionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "question submissions retrieved", rows)
}

func (h *GradingHandler) statistics(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.stats.AssignmentStatistics(requestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "statistics retrieved", stats)
}

func (h *GradingHandler) studentGrades(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grades, err := h.stats.StudentGrades(requestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "grades retrieved", grades)
}
