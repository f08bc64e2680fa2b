package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// QuestionService manages the question outline of an assignment. Every mutation
// rewrites the assignment total points from the remaining questions.
type QuestionService interface {
	List(ctx context.Context, actor Actor, assignmentID uint) ([]dto.QuestionResponse, error)
	Get(ctx context.Context, actor Actor, questionID uint) (dto.QuestionResponse, error)
	CreateBatch(ctx context.Context, actor Actor, assignmentID uint, payload dto.QuestionBatchRequest) ([]dto.QuestionResponse, error)
	Replace(ctx context.Context, actor Actor, assignmentID uint, payload dto.QuestionReplaceRequest) ([]dto.QuestionResponse, error)
	Update(ctx context.Context, actor Actor, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error)
	Delete(ctx context.Context, actor Actor, questionID uint) error
}

type questionService struct {
	repo        repository.QuestionRepository
	assignments repository.AssignmentRepository
	grades      repository.SubmissionGradeRepository
	access      accessControl
	activity    ActivityRecorder
	stats       StatisticsInvalidator
	validator   *validator.Validate
	sanitizer   textSanitizer
	logger      zerolog.Logger
}

// QuestionDeps groups the collaborators of the question service.
type QuestionDeps struct {
	Questions   repository.QuestionRepository
	Assignments repository.AssignmentRepository
	Courses     repository.CourseRepository
	Grades      repository.SubmissionGradeRepository
	Activity    ActivityRecorder
	Stats       StatisticsInvalidator
}

// NewQuestionService builds the question service.
func NewQuestionService(deps QuestionDeps, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	return &questionService{
		repo:        deps.Questions,
		assignments: deps.Assignments,
		grades:      deps.Grades,
		access:      accessControl{courses: deps.Courses, assignments: deps.Assignments},
		activity:    deps.Activity,
		stats:       deps.Stats,
		validator:   validate,
		sanitizer:   newTextSanitizer(),
		logger:      logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) List(ctx context.Context, actor Actor, assignmentID uint) ([]dto.QuestionResponse, error) {
	if _, _, err := s.access.memberAssignment(ctx, actor, assignmentID); err != nil {
		return nil, err
	}

	questions, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionService) Get(ctx context.Context, actor Actor, questionID uint) (dto.QuestionResponse, error) {
	question, err := s.question(ctx, questionID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	if _, _, err := s.access.memberAssignment(ctx, actor, question.AssignmentID); err != nil {
		return dto.QuestionResponse{}, err
	}
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) CreateBatch(ctx context.Context, actor Actor, assignmentID uint, payload dto.QuestionBatchRequest) ([]dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}
	assignment, err := s.access.staffAssignment(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	questions, err := s.buildQuestions(assignmentID, payload.Questions, len(existing))
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateBatch(ctx, questions)
	if err != nil {
		return nil, err
	}

	if err := s.syncTotal(ctx, assignment); err != nil {
		return nil, err
	}
	s.recordChange(ctx, actor, assignment, "create", len(created))

	return dto.NewQuestionResponseSlice(created), nil
}

func (s *questionService) Replace(ctx context.Context, actor Actor, assignmentID uint, payload dto.QuestionReplaceRequest) ([]dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}
	assignment, err := s.access.staffAssignment(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	questions, err := s.buildQuestions(assignmentID, payload.Questions, 0)
	if err != nil {
		return nil, err
	}

	replaced, err := s.repo.ReplaceAll(ctx, assignmentID, questions)
	if err != nil {
		return nil, err
	}

	if err := s.syncTotal(ctx, assignment); err != nil {
		return nil, err
	}
	s.recordChange(ctx, actor, assignment, "replace", len(replaced))

	return dto.NewQuestionResponseSlice(replaced), nil
}

func (s *questionService) Update(ctx context.Context, actor Actor, questionID uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.question(ctx, questionID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	assignment, err := s.access.staffAssignment(ctx, actor, question.AssignmentID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if payload.Title != nil {
		title, err := s.sanitizer.RequiredPlain(*payload.Title)
		if err != nil {
			return dto.QuestionResponse{}, err
		}
		question.Title = title
	}
	if payload.Number != nil {
		question.Number = *payload.Number
	}
	if payload.OrderIndex != nil {
		question.OrderIndex = *payload.OrderIndex
	}
	if payload.DefaultPageNumbers != nil {
		question.DefaultPageNumbers = datatypes.JSONSlice[int](payload.DefaultPageNumbers)
	}
	pointsChanged := false
	if payload.MaxPoints != nil {
		maxPoints := decimal.NewFromFloat(*payload.MaxPoints).Round(2)
		if err := grading.ValidateMaxPoints(maxPoints); err != nil {
			return dto.QuestionResponse{}, err
		}
		pointsChanged = !maxPoints.Equal(question.MaxPoints)
		question.MaxPoints = maxPoints
	}

	rubric := question.RubricItems
	question.RubricItems = nil
	if err := s.repo.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}
	question.RubricItems = rubric

	if pointsChanged {
		if err := s.recomputeGrades(ctx, question); err != nil {
			return dto.QuestionResponse{}, err
		}
	}

	if err := s.syncTotal(ctx, assignment); err != nil {
		return dto.QuestionResponse{}, err
	}
	s.recordChange(ctx, actor, assignment, "update", 1)

	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Delete(ctx context.Context, actor Actor, questionID uint) error {
	question, err := s.question(ctx, questionID)
	if err != nil {
		return err
	}
	assignment, err := s.access.staffAssignment(ctx, actor, question.AssignmentID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if err := s.syncTotal(ctx, assignment); err != nil {
		return err
	}
	s.recordChange(ctx, actor, assignment, "delete", 1)
	return nil
}

func (s *questionService) question(ctx context.Context, id uint) (models.Question, error) {
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, ErrQuestionNotFound
		}
		return models.Question{}, err
	}
	return question, nil
}

func (s *questionService) buildQuestions(assignmentID uint, inputs []dto.QuestionInput, offset int) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(inputs))
	for i, input := range inputs {
		title, err := s.sanitizer.RequiredPlain(input.Title)
		if err != nil {
			return nil, err
		}

		maxPoints := decimal.NewFromFloat(input.MaxPoints).Round(2)
		if err := grading.ValidateMaxPoints(maxPoints); err != nil {
			return nil, err
		}

		number := input.Number
		if number == 0 {
			number = offset + i + 1
		}
		orderIndex := offset + i
		if input.OrderIndex != nil {
			orderIndex = *input.OrderIndex
		}

		questions = append(questions, models.Question{
			AssignmentID:       assignmentID,
			Number:             number,
			Title:              title,
			MaxPoints:          maxPoints,
			OrderIndex:         orderIndex,
			DefaultPageNumbers: datatypes.JSONSlice[int](input.DefaultPageNumbers),
		})
	}
	return questions, nil
}

// syncTotal writes the sum of the remaining questions' max points to the assignment.
func (s *questionService) syncTotal(ctx context.Context, assignment models.Assignment) error {
	questions, err := s.repo.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return err
	}

	total := grading.AssignmentTotal(questions)
	if err := s.assignments.UpdateTotalPoints(ctx, assignment.ID, total); err != nil {
		s.logger.Error().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to update assignment total points")
		return err
	}

	s.logger.Debug().Uint("assignment_id", assignment.ID).Str("total_points", total.StringFixed(2)).Msg("assignment total synced")

	// The question set feeds progress and statistics.
	if s.stats != nil {
		s.stats.Invalidate(ctx, assignment.ID)
	}
	return nil
}

// recomputeGrades rewrites recorded totals after the question's max points changed.
func (s *questionService) recomputeGrades(ctx context.Context, question models.Question) error {
	changed, err := s.grades.RecomputeByQuestion(ctx, question)
	if err != nil {
		s.logger.Error().Err(err).Uint("question_id", question.ID).Msg("failed to recompute grade totals")
		return err
	}
	s.logger.Info().Uint("question_id", question.ID).Int("grades", changed).Msg("grade totals recomputed")
	return nil
}

func (s *questionService) recordChange(ctx context.Context, actor Actor, assignment models.Assignment, operation string, count int) {
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   assignment.CourseID,
		Action:     ActionQuestionsChanged,
		EntityType: "assignment",
		EntityID:   &assignment.ID,
		Metadata:   map[string]interface{}{"operation": operation, "count": count},
	})
}
