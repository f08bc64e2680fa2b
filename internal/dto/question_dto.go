package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// QuestionInput is one question in a create or replace payload.
type QuestionInput struct {
	Number             int     `json:"number" validate:"omitempty,gte=1"`
	Title              string  `json:"title" validate:"required,min=1,max=255"`
	MaxPoints          float64 `json:"max_points"`
	OrderIndex         *int    `json:"order_index" validate:"omitempty,gte=0"`
	DefaultPageNumbers []int   `json:"default_page_numbers" validate:"omitempty,dive,gte=1"`
}

// QuestionBatchRequest creates or replaces several questions at once.
type QuestionBatchRequest struct {
	Questions []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// QuestionReplaceRequest replaces the whole outline; an empty list clears it.
type QuestionReplaceRequest struct {
	Questions []QuestionInput `json:"questions" validate:"dive"`
}

// QuestionUpdateRequest captures partial question updates.
type QuestionUpdateRequest struct {
	Number             *int     `json:"number" validate:"omitempty,gte=1"`
	Title              *string  `json:"title" validate:"omitempty,min=1,max=255"`
	MaxPoints          *float64 `json:"max_points"`
	OrderIndex         *int     `json:"order_index" validate:"omitempty,gte=0"`
	DefaultPageNumbers []int    `json:"default_page_numbers" validate:"omitempty,dive,gte=1"`
}

// QuestionResponse is the serialized question.
type QuestionResponse struct {
	ID                 uint                 `json:"id"`
	AssignmentID       uint                 `json:"assignment_id"`
	Number             int                  `json:"number"`
	Title              string               `json:"title"`
	MaxPoints          float64              `json:"max_points"`
	OrderIndex         int                  `json:"order_index"`
	DefaultPageNumbers []int                `json:"default_page_numbers"`
	RubricItems        []RubricItemResponse `json:"rubric_items,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewQuestionResponse converts a model into a DTO.
func NewQuestionResponse(question models.Question) QuestionResponse {
	pages := []int(question.DefaultPageNumbers)
	if pages == nil {
		pages = []int{}
	}
	response := QuestionResponse{
		ID:                 question.ID,
		AssignmentID:       question.AssignmentID,
		Number:             question.Number,
		Title:              question.Title,
		MaxPoints:          Points(question.MaxPoints),
		OrderIndex:         question.OrderIndex,
		DefaultPageNumbers: pages,
		CreatedAt:          question.CreatedAt,
		UpdatedAt:          question.UpdatedAt,
	}
	if len(question.RubricItems) > 0 {
		response.RubricItems = NewRubricItemResponseSlice(question.RubricItems)
	}
	return response
}

// NewQuestionResponseSlice converts questions into DTOs.
func NewQuestionResponseSlice(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}
	return responses
}

// RubricItemCreateRequest describes a new rubric item.
type RubricItemCreateRequest struct {
	Label       string  `json:"label" validate:"required,min=1,max=255"`
	DeltaPoints float64 `json:"delta_points"`
	OrderIndex  *int    `json:"order_index" validate:"omitempty,gte=0"`
	IsPositive  bool    `json:"is_positive"`
}

// RubricItemUpdateRequest captures partial rubric item updates.
type RubricItemUpdateRequest struct {
	Label       *string  `json:"label" validate:"omitempty,min=1,max=255"`
	DeltaPoints *float64 `json:"delta_points"`
	OrderIndex  *int     `json:"order_index" validate:"omitempty,gte=0"`
	IsPositive  *bool    `json:"is_positive"`
	IsActive    *bool    `json:"is_active"`
}

// RubricItemResponse is the serialized rubric item.
type RubricItemResponse struct {
	ID          uint    `json:"id"`
	QuestionID  uint    `json:"question_id"`
	Label       string  `json:"label"`
	DeltaPoints float64 `json:"delta_points"`
	OrderIndex  int     `json:"order_index"`
	IsPositive  bool    `json:"is_positive"`
	IsActive    bool    `json:"is_active"`
}

// NewRubricItemResponse converts a model into a DTO.
func NewRubricItemResponse(item models.RubricItem) RubricItemResponse {
	return RubricItemResponse{
		ID:          item.ID,
		QuestionID:  item.QuestionID,
		Label:       item.Label,
		DeltaPoints: Points(item.DeltaPoints),
		OrderIndex:  item.OrderIndex,
		IsPositive:  item.IsPositive,
		IsActive:    item.IsActive,
	}
}

// NewRubricItemResponseSlice converts rubric items into DTOs.
func NewRubricItemResponseSlice(items []models.RubricItem) []RubricItemResponse {
	responses := make([]RubricItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewRubricItemResponse(item))
	}
	return responses
}
