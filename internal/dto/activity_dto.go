package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// ActivityListRequest defines filters for retrieving activity logs of a course.
type ActivityListRequest struct {
	CourseID   uint
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	CourseID   *uint                  `json:"course_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewActivityResponse converts an activity log into a DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range entry.Metadata {
		metadata[key] = value
	}
	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		CourseID:   entry.CourseID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}
