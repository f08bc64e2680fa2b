package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// StatisticsInvalidator drops cached statistics of an assignment.
type StatisticsInvalidator interface {
	Invalidate(ctx context.Context, assignmentID uint)
}

// BulkUpload is an instructor upload of several PDFs. StudentIDs is matched to
// Files by position; a blank id leaves the submission unassigned.
type BulkUpload struct {
	Files      []*multipart.FileHeader
	StudentIDs []string
	NumPages   int
}

// SubmissionService handles submission uploads and their lifecycle.
type SubmissionService interface {
	BulkUpload(ctx context.Context, actor Actor, assignmentID uint, upload BulkUpload) (dto.BulkUploadResponse, error)
	StudentUpload(ctx context.Context, actor Actor, assignmentID uint, file *multipart.FileHeader, replace bool) (dto.SubmissionResponse, error)
	Mine(ctx context.Context, actor Actor, assignmentID uint) (dto.SubmissionDetailResponse, error)
	List(ctx context.Context, actor Actor, assignmentID uint) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionDetailResponse, error)
	UpdatePageCount(ctx context.Context, actor Actor, submissionID uint, payload dto.PageCountRequest) (dto.SubmissionResponse, error)
	ReplaceFile(ctx context.Context, actor Actor, submissionID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, actor Actor, submissionID uint) error
}

type submissionService struct {
	repo      repository.SubmissionRepository
	questions repository.QuestionRepository
	users     repository.UserRepository
	access    accessControl
	uploader  pdfUploader
	stats     StatisticsInvalidator
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// SubmissionDeps groups the collaborators of the submission service.
type SubmissionDeps struct {
	Submissions repository.SubmissionRepository
	Questions   repository.QuestionRepository
	Assignments repository.AssignmentRepository
	Courses     repository.CourseRepository
	Users       repository.UserRepository
	Storage     FileStorage
	MaxUploadMB int
	Stats       StatisticsInvalidator
	Activity    ActivityRecorder
}

// NewSubmissionService builds the submission service.
func NewSubmissionService(deps SubmissionDeps, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		repo:      deps.Submissions,
		questions: deps.Questions,
		users:     deps.Users,
		access:    accessControl{courses: deps.Courses, assignments: deps.Assignments},
		uploader:  newPDFUploader(deps.Storage, deps.MaxUploadMB),
		stats:     deps.Stats,
		activity:  deps.Activity,
		validator: validate,
		logger:    logger.With().Str("component", "submission_service").Logger(),
		now:       time.Now,
	}
}

func (s *submissionService) BulkUpload(ctx context.Context, actor Actor, assignmentID uint, upload BulkUpload) (dto.BulkUploadResponse, error) {
	assignment, err := s.access.staffAssignment(ctx, actor, assignmentID)
	if err != nil {
		return dto.BulkUploadResponse{}, err
	}
	if len(upload.Files) == 0 {
		return dto.BulkUploadResponse{}, ErrFileRequired
	}

	numPages := upload.NumPages
	if numPages <= 0 {
		numPages = 1
	}

	result := dto.BulkUploadResponse{Created: []dto.SubmissionResponse{}, Skipped: []dto.SkippedUpload{}}
	uploaderID := actor.ID

	for i, file := range upload.Files {
		var studentID *uint
		if i < len(upload.StudentIDs) && strings.TrimSpace(upload.StudentIDs[i]) != "" {
			resolved, ok := s.resolveStudent(ctx, upload.StudentIDs[i])
			if !ok {
				result.Skipped = append(result.Skipped, dto.SkippedUpload{FileName: file.Filename, Reason: "student not found"})
				continue
			}
			studentID = &resolved
		}

		stored, err := s.uploader.Store(ctx, "submission", fmt.Sprintf("assignment-%d", assignment.ID), file)
		if err != nil {
			if isUploadRejection(err) {
				skipped := dto.SkippedUpload{FileName: file.Filename, Reason: err.Error()}
				if studentID != nil {
					skipped.StudentID = *studentID
				}
				result.Skipped = append(result.Skipped, skipped)
				continue
			}
			return dto.BulkUploadResponse{}, err
		}

		submission := models.Submission{
			AssignmentID: assignment.ID,
			UploadedByID: &uploaderID,
			StudentID:    studentID,
			FileURL:      stored.URL,
			FileName:     stored.Name,
			SizeBytes:    stored.SizeBytes,
			Checksum:     stored.Checksum,
			NumPages:     numPages,
		}
		if err := s.repo.Create(ctx, &submission); err != nil {
			return dto.BulkUploadResponse{}, err
		}

		created, err := s.repo.GetByID(ctx, submission.ID)
		if err != nil {
			return dto.BulkUploadResponse{}, err
		}
		result.Created = append(result.Created, dto.NewSubmissionResponse(created, nil))
	}

	if len(result.Created) > 0 {
		s.invalidate(ctx, assignment.ID)
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Int("created", len(result.Created)).
		Int("skipped", len(result.Skipped)).
		Msg("bulk submissions uploaded")

	return result, nil
}

func (s *submissionService) resolveStudent(ctx context.Context, raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	user, err := s.users.GetByID(ctx, uint(id))
	if err != nil {
		return 0, false
	}
	return user.ID, true
}

func isUploadRejection(err error) bool {
	return errors.Is(err, ErrUploadTooLarge) || errors.Is(err, ErrUploadTypeNotAllowed) || errors.Is(err, ErrFileRequired)
}

func (s *submissionService) StudentUpload(ctx context.Context, actor Actor, assignmentID uint, file *multipart.FileHeader, replace bool) (dto.SubmissionResponse, error) {
	assignment, membership, err := s.access.memberAssignment(ctx, actor, assignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if membership.Role != models.MembershipStudent || !assignment.UploadByStudent {
		return dto.SubmissionResponse{}, ErrForbidden
	}
	if !acceptsUploads(assignment, s.now()) {
		return dto.SubmissionResponse{}, ErrSubmissionClosed
	}

	existing, err := s.repo.GetByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	switch {
	case err == nil && !replace:
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	case errors.Is(err, gorm.ErrRecordNotFound) && replace:
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.SubmissionResponse{}, err
	}

	stored, err := s.uploader.Store(ctx, "submission", fmt.Sprintf("assignment-%d-student-%d", assignmentID, actor.ID), file)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if replace {
		updated, err := s.replaceStoredFile(ctx, existing, stored)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
		return dto.NewSubmissionResponse(updated, nil), nil
	}

	studentID := actor.ID
	submission := models.Submission{
		AssignmentID: assignmentID,
		UploadedByID: &studentID,
		StudentID:    &studentID,
		FileURL:      stored.URL,
		FileName:     stored.Name,
		SizeBytes:    stored.SizeBytes,
		Checksum:     stored.Checksum,
		NumPages:     1,
	}
	if err := s.repo.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}
	s.invalidate(ctx, assignmentID)

	created, err := s.repo.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignmentID).Uint("submission_id", submission.ID).Msg("student submission uploaded")
	return dto.NewSubmissionResponse(created, nil), nil
}

// acceptsUploads is true before the due date, or before the late due date when late work is allowed.
func acceptsUploads(assignment models.Assignment, now time.Time) bool {
	if !assignment.IsPastDue(now) {
		return true
	}
	if !assignment.AllowLate {
		return false
	}
	return assignment.LateDueAt == nil || now.Before(*assignment.LateDueAt)
}

func (s *submissionService) Mine(ctx context.Context, actor Actor, assignmentID uint) (dto.SubmissionDetailResponse, error) {
	if _, _, err := s.access.memberAssignment(ctx, actor, assignmentID); err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	submission, err := s.repo.GetByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetailResponse{}, err
	}
	return s.detail(ctx, submission)
}

func (s *submissionService) List(ctx context.Context, actor Actor, assignmentID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.access.staffAssignment(ctx, actor, assignmentID); err != nil {
		return nil, err
	}

	submissions, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions, questions), nil
}

func (s *submissionService) Get(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionDetailResponse, error) {
	submission, _, err := s.visibleSubmission(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionDetailResponse{}, err
	}
	return s.detail(ctx, submission)
}

func (s *submissionService) detail(ctx context.Context, submission models.Submission) (dto.SubmissionDetailResponse, error) {
	questions, err := s.questions.ListByAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return dto.SubmissionDetailResponse{}, err
	}
	return dto.SubmissionDetailResponse{
		Submission: dto.NewSubmissionResponse(submission, questions),
		Questions:  dto.NewQuestionResponseSlice(questions),
	}, nil
}

func (s *submissionService) UpdatePageCount(ctx context.Context, actor Actor, submissionID uint, payload dto.PageCountRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, _, err := s.visibleSubmission(ctx, actor, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission.NumPages = payload.NumPages
	if err := s.repo.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission, nil), nil
}

func (s *submissionService) ReplaceFile(ctx context.Context, actor Actor, submissionID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	submission, err := s.submission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if _, err := s.access.staffAssignment(ctx, actor, submission.AssignmentID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	stored, err := s.uploader.Store(ctx, "submission", fmt.Sprintf("assignment-%d-submission-%d", submission.AssignmentID, submission.ID), file)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	updated, err := s.replaceStoredFile(ctx, submission, stored)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(updated, nil), nil
}

// replaceStoredFile points the submission at a new file. The page count and page map
// described the previous document, so both are reset.
func (s *submissionService) replaceStoredFile(ctx context.Context, submission models.Submission, stored storedFile) (models.Submission, error) {
	submission.FileURL = stored.URL
	submission.FileName = stored.Name
	submission.SizeBytes = stored.SizeBytes
	submission.Checksum = stored.Checksum
	submission.NumPages = 1

	if err := s.repo.Update(ctx, &submission); err != nil {
		return models.Submission{}, err
	}
	pageMap, err := s.repo.SavePageMap(ctx, submission.ID, models.PageMap{})
	if err != nil {
		return models.Submission{}, err
	}
	submission.PageMap = &pageMap

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission file replaced")
	return submission, nil
}

func (s *submissionService) Delete(ctx context.Context, actor Actor, submissionID uint) error {
	submission, err := s.submission(ctx, submissionID)
	if err != nil {
		return err
	}
	assignment, err := s.access.staffAssignment(ctx, actor, submission.AssignmentID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}
	s.invalidate(ctx, assignment.ID)

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   assignment.CourseID,
		Action:     ActionSubmissionDeleted,
		EntityType: "submission",
		EntityID:   &submissionID,
		Metadata:   map[string]interface{}{"assignment_id": assignment.ID},
	})
	return nil
}

func (s *submissionService) submission(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

// visibleSubmission loads a submission the actor may see: course staff see all,
// students only their own.
func (s *submissionService) visibleSubmission(ctx context.Context, actor Actor, id uint) (models.Submission, models.Assignment, error) {
	return loadVisibleSubmission(ctx, s.access, s.repo, actor, id)
}

func loadVisibleSubmission(ctx context.Context, access accessControl, repo repository.SubmissionRepository, actor Actor, id uint) (models.Submission, models.Assignment, error) {
	submission, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, models.Assignment{}, ErrSubmissionNotFound
		}
		return models.Submission{}, models.Assignment{}, err
	}

	assignment, membership, err := access.memberAssignment(ctx, actor, submission.AssignmentID)
	if err != nil {
		return models.Submission{}, models.Assignment{}, err
	}
	if membership.Role == models.MembershipStudent && !submission.BelongsTo(actor.ID) {
		return models.Submission{}, models.Assignment{}, ErrForbidden
	}
	return submission, assignment, nil
}

func (s *submissionService) invalidate(ctx context.Context, assignmentID uint) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, assignmentID)
	}
}
