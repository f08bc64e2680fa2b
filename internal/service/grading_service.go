package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/observability"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// GradingService reads and updates the rubric grade of a (submission, question) pair.
type GradingService interface {
	GetGrade(ctx context.Context, actor Actor, submissionID, questionID uint) (dto.GradeDetailResponse, error)
	UpdateGrade(ctx context.Context, actor Actor, submissionID, questionID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error)
	AuthorizeFeed(ctx context.Context, actor Actor, assignmentID uint) error
}

// GradingDeps groups the collaborators of the grading service.
type GradingDeps struct {
	Grades      repository.SubmissionGradeRepository
	Submissions repository.SubmissionRepository
	Questions   repository.QuestionRepository
	RubricItems repository.RubricItemRepository
	Assignments repository.AssignmentRepository
	Courses     repository.CourseRepository
	Activity    ActivityRecorder
	Events      GradeEventPublisher
	Stats       StatisticsInvalidator
}

type gradingService struct {
	grades      repository.SubmissionGradeRepository
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	rubricItems repository.RubricItemRepository
	access      accessControl
	activity    ActivityRecorder
	events      GradeEventPublisher
	stats       StatisticsInvalidator
	validator   *validator.Validate
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService builds the grading service.
func NewGradingService(deps GradingDeps, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		grades:      deps.Grades,
		submissions: deps.Submissions,
		questions:   deps.Questions,
		rubricItems: deps.RubricItems,
		access:      accessControl{courses: deps.Courses, assignments: deps.Assignments},
		activity:    deps.Activity,
		events:      deps.Events,
		stats:       deps.Stats,
		validator:   validate,
		tracer:      otel.Tracer("github.com/noah-isme/bargeh-api/internal/service/grading"),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) GetGrade(ctx context.Context, actor Actor, submissionID, questionID uint) (dto.GradeDetailResponse, error) {
	assignment, question, err := s.gradingPair(ctx, actor, submissionID, questionID)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}

	grade, created, err := s.grades.GetOrCreate(ctx, submissionID, question)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}
	// A fresh grade counts toward progress and statistics.
	if created && s.stats != nil {
		s.stats.Invalidate(ctx, assignment.ID)
	}

	items, err := s.rubricItems.ListByQuestion(ctx, questionID, false)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}

	return dto.GradeDetailResponse{
		Grade:       dto.NewGradeResponse(grade, question),
		RubricItems: dto.NewRubricItemResponseSlice(items),
		Created:     created,
	}, nil
}

// AuthorizeFeed checks that the actor may watch live grade events of the assignment.
func (s *gradingService) AuthorizeFeed(ctx context.Context, actor Actor, assignmentID uint) error {
	_, err := s.access.staffAssignment(ctx, actor, assignmentID)
	return err
}

func (s *gradingService) UpdateGrade(ctx context.Context, actor Actor, submissionID, questionID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.question_id", int64(questionID)),
		attribute.Int("grading.selected_items", len(payload.SelectedItemIDs)),
	)
	defer span.End()

	response, err := s.updateGrade(ctx, actor, submissionID, questionID, payload)
	observability.GradeUpdates().WithLabelValues(gradeOutcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_update_failed")
		return dto.GradeResponse{}, err
	}
	span.SetAttributes(attribute.Int("grading.version", response.Version))
	return response, nil
}

func (s *gradingService) updateGrade(ctx context.Context, actor Actor, submissionID, questionID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeResponse{}, err
	}

	assignment, question, err := s.gradingPair(ctx, actor, submissionID, questionID)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	// Inactive items are loaded too so the validator can tell them apart from unknown ids.
	items, err := s.rubricItems.ListByQuestion(ctx, questionID, true)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	selected, err := grading.ValidateSelection(question, items, payload.SelectedItemIDs)
	if err != nil {
		return dto.GradeResponse{}, err
	}
	total := grading.ComputeTotal(question.MaxPoints, selected)

	grade, _, err := s.grades.GetOrCreate(ctx, submissionID, question)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	expected := 0
	if payload.ExpectedVersion != nil {
		expected = *payload.ExpectedVersion
	}

	graderID := actor.ID
	grade.TotalPoints = total
	grade.GradedByID = &graderID
	if err := s.grades.UpdateSelection(ctx, &grade, selected, expected); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return dto.GradeResponse{}, ErrVersionConflict
		}
		return dto.GradeResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submissionID).
		Uint("question_id", questionID).
		Str("total_points", grade.TotalPoints.StringFixed(2)).
		Int("version", grade.Version).
		Msg("grade updated")

	entityID := grade.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   assignment.CourseID,
		Action:     ActionGradeUpdated,
		EntityType: "submission_grade",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"submission_id":     submissionID,
			"question_id":       questionID,
			"selected_item_ids": grade.SelectedItemIDs(),
			"total_points":      dto.Points(grade.TotalPoints),
			"version":           grade.Version,
		},
	})

	if s.stats != nil {
		s.stats.Invalidate(ctx, assignment.ID)
	}

	if s.events != nil {
		event := dto.GradeEvent{
			Type:         gradeEventUpdated,
			AssignmentID: assignment.ID,
			SubmissionID: submissionID,
			QuestionID:   questionID,
			TotalPoints:  dto.Points(grade.TotalPoints),
			Version:      grade.Version,
			GradedByID:   grade.GradedByID,
			OccurredAt:   s.now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to publish grade event")
		}
	}

	return dto.NewGradeResponse(grade, question), nil
}

// gradingPair checks the actor grades the submission's course and that the
// question belongs to the submission's assignment.
func (s *gradingService) gradingPair(ctx context.Context, actor Actor, submissionID, questionID uint) (models.Assignment, models.Question, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, models.Question{}, ErrSubmissionNotFound
		}
		return models.Assignment{}, models.Question{}, err
	}

	assignment, err := s.access.staffAssignment(ctx, actor, submission.AssignmentID)
	if err != nil {
		return models.Assignment{}, models.Question{}, err
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, models.Question{}, ErrQuestionNotFound
		}
		return models.Assignment{}, models.Question{}, err
	}
	if question.AssignmentID != submission.AssignmentID {
		return models.Assignment{}, models.Question{}, ErrQuestionNotFound
	}

	return assignment, question, nil
}

func gradeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, grading.ErrInvalidSelection):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden), errors.Is(err, grading.ErrNotFound):
		return "rejected"
	default:
		var validationErr validator.ValidationErrors
		if errors.As(err, &validationErr) {
			return "invalid"
		}
		return "error"
	}
}
