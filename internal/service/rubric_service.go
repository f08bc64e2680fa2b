package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// RubricService manages the rubric items of a question. Items are never hard
// deleted so grades recorded against them keep their selection.
type RubricService interface {
	List(ctx context.Context, actor Actor, questionID uint, includeInactive bool) ([]dto.RubricItemResponse, error)
	Create(ctx context.Context, actor Actor, questionID uint, payload dto.RubricItemCreateRequest) (dto.RubricItemResponse, error)
	Update(ctx context.Context, actor Actor, itemID uint, payload dto.RubricItemUpdateRequest) (dto.RubricItemResponse, error)
	Delete(ctx context.Context, actor Actor, itemID uint) error
	Replace(ctx context.Context, actor Actor, questionID uint, payload []dto.RubricItemCreateRequest) ([]dto.RubricItemResponse, error)
}

type rubricService struct {
	repo      repository.RubricItemRepository
	questions repository.QuestionRepository
	grades    repository.SubmissionGradeRepository
	access    accessControl
	activity  ActivityRecorder
	stats     StatisticsInvalidator
	validator *validator.Validate
	sanitizer textSanitizer
	logger    zerolog.Logger
}

// RubricDeps groups the collaborators of the rubric service.
type RubricDeps struct {
	RubricItems repository.RubricItemRepository
	Questions   repository.QuestionRepository
	Assignments repository.AssignmentRepository
	Courses     repository.CourseRepository
	Grades      repository.SubmissionGradeRepository
	Activity    ActivityRecorder
	Stats       StatisticsInvalidator
}

// NewRubricService builds the rubric service.
func NewRubricService(deps RubricDeps, validate *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		repo:      deps.RubricItems,
		questions: deps.Questions,
		grades:    deps.Grades,
		access:    accessControl{courses: deps.Courses, assignments: deps.Assignments},
		activity:  deps.Activity,
		stats:     deps.Stats,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) List(ctx context.Context, actor Actor, questionID uint, includeInactive bool) ([]dto.RubricItemResponse, error) {
	if _, _, err := s.staffQuestion(ctx, actor, questionID); err != nil {
		return nil, err
	}

	items, err := s.repo.ListByQuestion(ctx, questionID, includeInactive)
	if err != nil {
		return nil, err
	}
	return dto.NewRubricItemResponseSlice(items), nil
}

func (s *rubricService) Create(ctx context.Context, actor Actor, questionID uint, payload dto.RubricItemCreateRequest) (dto.RubricItemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricItemResponse{}, err
	}
	_, assignment, err := s.staffQuestion(ctx, actor, questionID)
	if err != nil {
		return dto.RubricItemResponse{}, err
	}

	label, err := s.sanitizer.RequiredPlain(payload.Label)
	if err != nil {
		return dto.RubricItemResponse{}, err
	}

	orderIndex := 0
	if payload.OrderIndex != nil {
		orderIndex = *payload.OrderIndex
	} else {
		orderIndex, err = s.repo.NextOrderIndex(ctx, questionID)
		if err != nil {
			return dto.RubricItemResponse{}, err
		}
	}

	delta, err := deltaPoints(payload.DeltaPoints)
	if err != nil {
		return dto.RubricItemResponse{}, err
	}

	item := models.RubricItem{
		QuestionID:  questionID,
		Label:       label,
		DeltaPoints: delta,
		OrderIndex:  orderIndex,
		IsPositive:  payload.IsPositive,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, &item); err != nil {
		return dto.RubricItemResponse{}, err
	}

	s.record(ctx, actor, assignment, ActionRubricCreated, item)
	return dto.NewRubricItemResponse(item), nil
}

func (s *rubricService) Update(ctx context.Context, actor Actor, itemID uint, payload dto.RubricItemUpdateRequest) (dto.RubricItemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricItemResponse{}, err
	}

	item, err := s.item(ctx, itemID)
	if err != nil {
		return dto.RubricItemResponse{}, err
	}
	question, assignment, err := s.staffQuestion(ctx, actor, item.QuestionID)
	if err != nil {
		return dto.RubricItemResponse{}, err
	}

	if payload.Label != nil {
		label, err := s.sanitizer.RequiredPlain(*payload.Label)
		if err != nil {
			return dto.RubricItemResponse{}, err
		}
		item.Label = label
	}
	deltaChanged := false
	if payload.DeltaPoints != nil {
		delta, err := deltaPoints(*payload.DeltaPoints)
		if err != nil {
			return dto.RubricItemResponse{}, err
		}
		deltaChanged = !delta.Equal(item.DeltaPoints)
		item.DeltaPoints = delta
	}
	if payload.OrderIndex != nil {
		item.OrderIndex = *payload.OrderIndex
	}
	if payload.IsPositive != nil {
		item.IsPositive = *payload.IsPositive
	}
	if payload.IsActive != nil {
		item.IsActive = *payload.IsActive
	}

	if err := s.repo.Update(ctx, &item); err != nil {
		return dto.RubricItemResponse{}, err
	}

	// Grades that selected the item carry its old delta in their totals.
	if deltaChanged {
		changed, err := s.grades.RecomputeByQuestion(ctx, question)
		if err != nil {
			s.logger.Error().Err(err).Uint("rubric_item_id", item.ID).Msg("failed to recompute grade totals")
			return dto.RubricItemResponse{}, err
		}
		if s.stats != nil {
			s.stats.Invalidate(ctx, assignment.ID)
		}
		s.logger.Info().Uint("rubric_item_id", item.ID).Int("grades", changed).Msg("grade totals recomputed")
	}

	s.record(ctx, actor, assignment, ActionRubricUpdated, item)
	return dto.NewRubricItemResponse(item), nil
}

func (s *rubricService) Delete(ctx context.Context, actor Actor, itemID uint) error {
	item, err := s.item(ctx, itemID)
	if err != nil {
		return err
	}
	_, assignment, err := s.staffQuestion(ctx, actor, item.QuestionID)
	if err != nil {
		return err
	}

	item.IsActive = false
	if err := s.repo.Update(ctx, &item); err != nil {
		return err
	}

	s.record(ctx, actor, assignment, ActionRubricDeactivated, item)
	return nil
}

func (s *rubricService) Replace(ctx context.Context, actor Actor, questionID uint, payload []dto.RubricItemCreateRequest) ([]dto.RubricItemResponse, error) {
	_, assignment, err := s.staffQuestion(ctx, actor, questionID)
	if err != nil {
		return nil, err
	}

	items := make([]models.RubricItem, 0, len(payload))
	for i, input := range payload {
		if err := s.validator.Struct(input); err != nil {
			return nil, err
		}
		label, err := s.sanitizer.RequiredPlain(input.Label)
		if err != nil {
			return nil, err
		}
		delta, err := deltaPoints(input.DeltaPoints)
		if err != nil {
			return nil, err
		}
		orderIndex := i
		if input.OrderIndex != nil {
			orderIndex = *input.OrderIndex
		}
		items = append(items, models.RubricItem{
			Label:       label,
			DeltaPoints: delta,
			OrderIndex:  orderIndex,
			IsPositive:  input.IsPositive,
			IsActive:    true,
		})
	}

	created, err := s.repo.ReplaceActive(ctx, questionID, items)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   assignment.CourseID,
		Action:     ActionRubricReplaced,
		EntityType: "question",
		EntityID:   &questionID,
		Metadata:   map[string]interface{}{"count": len(created)},
	})
	return dto.NewRubricItemResponseSlice(created), nil
}

func deltaPoints(value float64) (decimal.Decimal, error) {
	delta := decimal.NewFromFloat(value).Round(2)
	if err := grading.ValidateDelta(delta); err != nil {
		return decimal.Zero, err
	}
	return delta, nil
}

func (s *rubricService) item(ctx context.Context, id uint) (models.RubricItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RubricItem{}, ErrRubricItemNotFound
		}
		return models.RubricItem{}, err
	}
	return item, nil
}

func (s *rubricService) staffQuestion(ctx context.Context, actor Actor, questionID uint) (models.Question, models.Assignment, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, models.Assignment{}, ErrQuestionNotFound
		}
		return models.Question{}, models.Assignment{}, err
	}
	assignment, err := s.access.staffAssignment(ctx, actor, question.AssignmentID)
	if err != nil {
		return models.Question{}, models.Assignment{}, err
	}
	return question, assignment, nil
}

func (s *rubricService) record(ctx context.Context, actor Actor, assignment models.Assignment, action string, item models.RubricItem) {
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   assignment.CourseID,
		Action:     action,
		EntityType: "rubric_item",
		EntityID:   &item.ID,
		Metadata: map[string]interface{}{
			"question_id":  item.QuestionID,
			"label":        item.Label,
			"delta_points": item.DeltaPoints.StringFixed(2),
			"is_active":    item.IsActive,
		},
	})
}
