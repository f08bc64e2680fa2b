package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// AssignmentService exposes assignment use cases scoped to a course.
type AssignmentService interface {
	List(ctx context.Context, actor Actor, courseID uint) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, actor Actor, courseID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	UploadTemplate(ctx context.Context, actor Actor, id uint, file *multipart.FileHeader) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	access    accessControl
	uploader  pdfUploader
	validator *validator.Validate
	sanitizer textSanitizer
	logger    zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, courses repository.CourseRepository, storage FileStorage, maxUploadMB int, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		access:    accessControl{courses: courses, assignments: repo},
		uploader:  newPDFUploader(storage, maxUploadMB),
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) List(ctx context.Context, actor Actor, courseID uint) ([]dto.AssignmentResponse, error) {
	if _, err := s.access.course(ctx, courseID); err != nil {
		return nil, err
	}
	membership, err := s.access.membership(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.repo.List(ctx, repository.AssignmentFilter{
		CourseID:      courseID,
		PublishedOnly: membership.Role == models.MembershipStudent,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	assignment, _, err := s.access.memberAssignment(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, actor Actor, courseID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if _, err := s.access.course(ctx, courseID); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := s.access.requireStaff(ctx, actor, courseID); err != nil {
		return dto.AssignmentResponse{}, err
	}

	title, err := s.sanitizer.RequiredPlain(payload.Title)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignmentType := payload.Type
	if assignmentType == "" {
		assignmentType = models.AssignmentTypeHomework
	}
	uploadByStudent := true
	if payload.UploadByStudent != nil {
		uploadByStudent = *payload.UploadByStudent
	}

	assignment := models.Assignment{
		CourseID:          courseID,
		Title:             title,
		Instructions:      s.sanitizer.Rich(payload.Instructions),
		TotalPoints:       decimal.Zero,
		Type:              assignmentType,
		IsPublished:       payload.IsPublished,
		DueAt:             payload.DueAt,
		LateDueAt:         payload.LateDueAt,
		ReleaseAt:         payload.ReleaseAt,
		AllowLate:         payload.AllowLate,
		AnonymizedGrading: payload.AnonymizedGrading,
		UploadByStudent:   uploadByStudent,
		CreatedByID:       actor.ID,
	}
	if err := validateDeadlines(assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("course_id", courseID).Msg("assignment created")
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, actor Actor, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.access.staffAssignment(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Title != nil {
		title, err := s.sanitizer.RequiredPlain(*payload.Title)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.Title = title
	}
	if payload.Instructions != nil {
		assignment.Instructions = s.sanitizer.Rich(*payload.Instructions)
	}
	if payload.Type != nil {
		assignment.Type = *payload.Type
	}
	if payload.IsPublished != nil {
		assignment.IsPublished = *payload.IsPublished
	}
	if payload.DueAt != nil {
		assignment.DueAt = payload.DueAt
	}
	if payload.LateDueAt != nil {
		assignment.LateDueAt = payload.LateDueAt
	}
	if payload.ReleaseAt != nil {
		assignment.ReleaseAt = payload.ReleaseAt
	}
	if payload.AllowLate != nil {
		assignment.AllowLate = *payload.AllowLate
	}
	if payload.AnonymizedGrading != nil {
		assignment.AnonymizedGrading = *payload.AnonymizedGrading
	}
	if payload.UploadByStudent != nil {
		assignment.UploadByStudent = *payload.UploadByStudent
	}
	if err := validateDeadlines(assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.access.staffAssignment(ctx, actor, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")
	return nil
}

func (s *assignmentService) UploadTemplate(ctx context.Context, actor Actor, id uint, file *multipart.FileHeader) (dto.AssignmentResponse, error) {
	assignment, err := s.access.staffAssignment(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	stored, err := s.uploader.Store(ctx, "template", fmt.Sprintf("assignment-%d-template", assignment.ID), file)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment.TemplateURL = stored.URL
	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Str("checksum", stored.Checksum).Msg("assignment template uploaded")
	return dto.NewAssignmentResponse(assignment), nil
}

func validateDeadlines(assignment models.Assignment) error {
	if assignment.DueAt != nil && assignment.LateDueAt != nil && assignment.LateDueAt.Before(*assignment.DueAt) {
		return ErrInvalidDeadline
	}
	return nil
}
