package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// CourseHandler wires course, enrollment, roster and activity routes.
type CourseHandler struct {
	courses  service.CourseService
	activity service.ActivityService
	logger   zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(courses service.CourseService, activity service.ActivityService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		courses:  courses,
		activity: activity,
		logger:   logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course endpoints to the API group.
func (h *CourseHandler) Register(router fiber.Router) {
	courses := router.Group("/courses")
	courses.Get("", h.list)
	courses.Post("", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
	courses.Post("/enroll", h.enroll)
	courses.Get("/:id", h.get)
	courses.Patch("/:id", h.update)
	courses.Delete("/:id", h.delete)
	courses.Delete("/:id/enrollment", h.unenroll)
	courses.Get("/:id/roster", h.roster)
	courses.Post("/:id/roster", h.addMember)
	courses.Delete("/:id/roster/:membershipId", h.removeMember)
	courses.Get("/:id/activity", h.listActivity)
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	courses, err := h.courses.List(requestContext(c), actorFromContext(c), strings.TrimSpace(c.Query("search")))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "courses retrieved", courses)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.courses.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	course, err := h.courses.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.CourseUpdateRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	course, err := h.courses.Update(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.courses.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course deleted", fiber.Map{"id": id})
}

func (h *CourseHandler) enroll(c *fiber.Ctx) error {
	var payload dto.EnrollRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	result, err := h.courses.Enroll(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if result.AlreadyEnrolled {
		return utils.SendSuccess(c, "already enrolled", result)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", result)
}

func (h *CourseHandler) unenroll(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.courses.Unenroll(requestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unenrolled", fiber.Map{"course_id": id})
}

func (h *CourseHandler) roster(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	members, err := h.courses.Roster(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "roster retrieved", members)
}

func (h *CourseHandler) addMember(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.RosterAddRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	member, err := h.courses.AddMember(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "member added", member)
}

func (h *CourseHandler) removeMember(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	membershipID, err := parseUintParam(c, "membershipId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.courses.RemoveMember(requestContext(c), actorFromContext(c), id, membershipID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "member removed", fiber.Map{"id": membershipID})
}

func (h *CourseHandler) listActivity(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	actorID, err := parseQueryInt(c, "actor_id")
	if err != nil || actorID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor_id")
	}

	result, err := h.activity.List(requestContext(c), actorFromContext(c), dto.ActivityListRequest{
		CourseID:   id,
		Page:       page,
		PageSize:   pageSize,
		ActorID:    uint(actorID),
		Action:     strings.TrimSpace(c.Query("action")),
		EntityType: strings.TrimSpace(c.Query("entity_type")),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, result.Items, "activity retrieved", result.Pagination)
}
