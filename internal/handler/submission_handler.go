package handler

import (
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/service"
	"github.com/noah-isme/bargeh-api/internal/utils"
)

// SubmissionHandler wires submission upload, lifecycle and page map routes.
type SubmissionHandler struct {
	submissions service.SubmissionService
	pageMaps    service.PageMapService
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions service.SubmissionService, pageMaps service.PageMapService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		pageMaps:    pageMaps,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the API group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	uploads := middleware.RateLimit("submission_upload", 30, time.Minute)

	router.Get("/assignments/:assignmentId/submissions", h.list)
	router.Get("/assignments/:assignmentId/submissions/mine", h.mine)
	router.Post("/assignments/:assignmentId/submissions/bulk", uploads, h.bulkUpload)
	router.Post("/assignments/:assignmentId/submissions", uploads, h.studentUpload)
	router.Put("/assignments/:assignmentId/submissions", uploads, h.studentReplace)

	router.Get("/submissions/:id", h.get)
	router.Delete("/submissions/:id", h.delete)
	router.Patch("/submissions/:id/pages", h.updatePageCount)
	router.Put("/submissions/:id/file", uploads, h.replaceFile)
	router.Get("/submissions/:id/page-map", h.getPageMap)
	router.Put("/submissions/:id/page-map", h.updatePageMap)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.submissions.List(requestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) mine(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.submissions.Mine(requestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission retrieved", detail)
}

func (h *SubmissionHandler) bulkUpload(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form required")
	}

	upload := service.BulkUpload{
		Files:      formFiles(form, "files"),
		StudentIDs: formValues(form, "student_ids"),
	}
	if raw := strings.TrimSpace(c.FormValue("num_pages")); raw != "" {
		pages, err := strconv.Atoi(raw)
		if err != nil || pages < 1 {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid num_pages")
		}
		upload.NumPages = pages
	}

	result, err := h.submissions.BulkUpload(requestContext(c), actorFromContext(c), assignmentID, upload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submissions uploaded", result)
}

func (h *SubmissionHandler) studentUpload(c *fiber.Ctx) error {
	return h.studentFile(c, false)
}

func (h *SubmissionHandler) studentReplace(c *fiber.Ctx) error {
	return h.studentFile(c, true)
}

func (h *SubmissionHandler) studentFile(c *fiber.Ctx, replace bool) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.logger, service.ErrFileRequired)
	}

	submission, err := h.submissions.StudentUpload(requestContext(c), actorFromContext(c), assignmentID, file, replace)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if replace {
		return utils.SendSuccess(c, "submission replaced", submission)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission uploaded", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.submissions.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission retrieved", detail)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.submissions.Delete(requestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission deleted", fiber.Map{"id": id})
}

func (h *SubmissionHandler) updatePageCount(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.PageCountRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	submission, err := h.submissions.UpdatePageCount(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "page count updated", submission)
}

func (h *SubmissionHandler) replaceFile(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.logger, service.ErrFileRequired)
	}

	submission, err := h.submissions.ReplaceFile(requestContext(c), actorFromContext(c), id, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission file replaced", submission)
}

func (h *SubmissionHandler) getPageMap(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	pageMap, err := h.pageMaps.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "page map retrieved", pageMap)
}

func (h *SubmissionHandler) updatePageMap(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.PageMapRequest
	if err := parseBody(c, &payload); err != nil {
		return err
	}

	pageMap, err := h.pageMaps.Update(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "page map updated", pageMap)
}

// formFiles accepts both the plain and the bracketed field name.
func formFiles(form *multipart.Form, key string) []*multipart.FileHeader {
	files := append([]*multipart.FileHeader{}, form.File[key]...)
	return append(files, form.File[key+"[]"]...)
}

func formValues(form *multipart.Form, key string) []string {
	values := append([]string{}, form.Value[key]...)
	return append(values, form.Value[key+"[]"]...)
}
