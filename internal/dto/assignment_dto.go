package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating an assignment.
// Total points are derived from the questions and cannot be supplied.
type AssignmentCreateRequest struct {
	Title             string     `json:"title" validate:"required,min=1,max=255"`
	Instructions      string     `json:"instructions" validate:"omitempty,max=20000"`
	Type              string     `json:"type" validate:"omitempty,oneof=homework exam project quiz"`
	IsPublished       bool       `json:"is_published"`
	DueAt             *time.Time `json:"due_at"`
	LateDueAt         *time.Time `json:"late_due_at"`
	ReleaseAt         *time.Time `json:"release_at"`
	AllowLate         bool       `json:"allow_late"`
	AnonymizedGrading bool       `json:"anonymized_grading"`
	UploadByStudent   *bool      `json:"upload_by_student"`
}

// AssignmentUpdateRequest captures partial assignment updates.
type AssignmentUpdateRequest struct {
	Title             *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Instructions      *string    `json:"instructions" validate:"omitempty,max=20000"`
	Type              *string    `json:"type" validate:"omitempty,oneof=homework exam project quiz"`
	IsPublished       *bool      `json:"is_published"`
	DueAt             *time.Time `json:"due_at"`
	LateDueAt         *time.Time `json:"late_due_at"`
	ReleaseAt         *time.Time `json:"release_at"`
	AllowLate         *bool      `json:"allow_late"`
	AnonymizedGrading *bool      `json:"anonymized_grading"`
	UploadByStudent   *bool      `json:"upload_by_student"`
}

// AssignmentResponse is the serialized assignment.
type AssignmentResponse struct {
	ID                uint               `json:"id"`
	CourseID          uint               `json:"course_id"`
	Title             string             `json:"title"`
	Instructions      string             `json:"instructions"`
	TemplateURL       string             `json:"template_url"`
	TotalPoints       float64            `json:"total_points"`
	Type              string             `json:"type"`
	IsPublished       bool               `json:"is_published"`
	DueAt             *time.Time         `json:"due_at"`
	LateDueAt         *time.Time         `json:"late_due_at"`
	ReleaseAt         *time.Time         `json:"release_at"`
	AllowLate         bool               `json:"allow_late"`
	AnonymizedGrading bool               `json:"anonymized_grading"`
	UploadByStudent   bool               `json:"upload_by_student"`
	CreatedByID       uint               `json:"created_by_id"`
	Questions         []QuestionResponse `json:"questions,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:                model.ID,
		CourseID:          model.CourseID,
		Title:             model.Title,
		Instructions:      model.Instructions,
		TemplateURL:       model.TemplateURL,
		TotalPoints:       Points(model.TotalPoints),
		Type:              model.Type,
		IsPublished:       model.IsPublished,
		DueAt:             model.DueAt,
		LateDueAt:         model.LateDueAt,
		ReleaseAt:         model.ReleaseAt,
		AllowLate:         model.AllowLate,
		AnonymizedGrading: model.AnonymizedGrading,
		UploadByStudent:   model.UploadByStudent,
		CreatedByID:       model.CreatedByID,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	if len(model.Questions) > 0 {
		response.Questions = NewQuestionResponseSlice(model.Questions)
	}
	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
