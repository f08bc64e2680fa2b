package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionGrade is the grading state of one submission for one question.
// TotalPoints is derived from the question's max points and the selected
// rubric items and is rewritten whenever the selection changes.
type SubmissionGrade struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	SubmissionID  uint            `gorm:"not null;uniqueIndex:idx_grade_submission_question" json:"submission_id"`
	QuestionID    uint            `gorm:"not null;uniqueIndex:idx_grade_submission_question;index" json:"question_id"`
	TotalPoints   decimal.Decimal `gorm:"type:numeric(6,2);not null" json:"total_points"`
	Version       int             `gorm:"not null;default:1" json:"version"`
	GradedByID    *uint           `json:"graded_by_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	SelectedItems []RubricItem    `gorm:"many2many:submission_grade_items;constraint:OnDelete:CASCADE" json:"selected_items"`
	Submission    Submission      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Question      Question        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// SelectedItemIDs lists the ids of the selected rubric items.
func (g SubmissionGrade) SelectedItemIDs() []uint {
	ids := make([]uint, 0, len(g.SelectedItems))
	for _, item := range g.SelectedItems {
		ids = append(ids, item.ID)
	}
	return ids
}
