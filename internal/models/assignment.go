package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Assignment types.
const (
	AssignmentTypeHomework = "homework"
	AssignmentTypeExam     = "exam"
	AssignmentTypeProject  = "project"
	AssignmentTypeQuiz     = "quiz"
)

// Assignment is a gradable piece of work inside a course. TotalPoints mirrors
// the sum of its questions' max points and is maintained by the question service.
type Assignment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CourseID          uint            `gorm:"not null;index" json:"course_id"`
	Title             string          `gorm:"size:255;not null" json:"title"`
	Instructions      string          `gorm:"type:text" json:"instructions"`
	TemplateURL       string          `gorm:"size:512" json:"template_url"`
	TotalPoints       decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"total_points"`
	IsPublished       bool            `gorm:"not null;default:false" json:"is_published"`
	Type              string          `gorm:"size:20;not null;default:homework" json:"type"`
	DueAt             *time.Time      `json:"due_at"`
	LateDueAt         *time.Time      `json:"late_due_at"`
	ReleaseAt         *time.Time      `json:"release_at"`
	AllowLate         bool            `gorm:"not null;default:false" json:"allow_late"`
	AnonymizedGrading bool            `gorm:"not null;default:false" json:"anonymized_grading"`
	UploadByStudent   bool            `gorm:"not null" json:"upload_by_student"`
	CreatedByID       uint            `gorm:"not null" json:"created_by_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Course            Course          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Questions         []Question      `json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueAt != nil && reference.After(*a.DueAt)
}

// Question is one gradable part of an assignment outline.
type Question struct {
	ID                 uint                     `gorm:"primaryKey" json:"id"`
	AssignmentID       uint                     `gorm:"not null;index" json:"assignment_id"`
	Number             int                      `gorm:"not null;default:1" json:"number"`
	Title              string                   `gorm:"size:255;not null" json:"title"`
	MaxPoints          decimal.Decimal          `gorm:"type:numeric(6,2);not null" json:"max_points"`
	OrderIndex         int                      `gorm:"not null;default:0" json:"order_index"`
	DefaultPageNumbers datatypes.JSONSlice[int] `gorm:"type:json" json:"default_page_numbers"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
	Assignment         Assignment               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	RubricItems        []RubricItem             `json:"-"`
}

// RubricItem is a signed point adjustment that graders can apply to a question.
// Inactive items are kept for existing selections but cannot be newly selected.
type RubricItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	QuestionID  uint            `gorm:"not null;index" json:"question_id"`
	Label       string          `gorm:"size:255;not null" json:"label"`
	DeltaPoints decimal.Decimal `gorm:"type:numeric(6,2);not null" json:"delta_points"`
	OrderIndex  int             `gorm:"not null;default:0" json:"order_index"`
	IsPositive  bool            `gorm:"not null" json:"is_positive"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Question    Question        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
