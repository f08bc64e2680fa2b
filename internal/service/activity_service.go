package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// Activity actions recorded by the services.
const (
	ActionGradeUpdated      = "grade.updated"
	ActionRubricCreated     = "rubric.created"
	ActionRubricUpdated     = "rubric.updated"
	ActionRubricDeactivated = "rubric.deactivated"
	ActionRubricReplaced    = "rubric.replaced"
	ActionMemberAdded       = "roster.added"
	ActionMemberRemoved     = "roster.removed"
	ActionQuestionsChanged  = "questions.changed"
	ActionSubmissionDeleted = "submission.deleted"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	Actor      Actor
	CourseID   uint
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, actor Actor, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	access accessControl
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, courses repository.CourseRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		access: accessControl{courses: courses},
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  normalizeRole(entry.Actor.Role),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}
	if entry.CourseID > 0 {
		courseID := entry.CourseID
		model.CourseID = &courseID
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return err
	}
	return nil
}

func (s *activityService) List(ctx context.Context, actor Actor, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if _, err := s.access.course(ctx, req.CourseID); err != nil {
		return dto.ActivityListResponse{}, err
	}
	if err := s.access.requireStaff(ctx, actor, req.CourseID); err != nil {
		return dto.ActivityListResponse{}, err
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	courseID := req.CourseID
	filter := repository.ActivityLogFilter{
		Page:       page,
		PageSize:   pageSize,
		CourseID:   &courseID,
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	return dto.ActivityListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

// recordActivity logs instead of failing the calling use case when the audit write fails.
func recordActivity(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("activity log not recorded")
	}
}
