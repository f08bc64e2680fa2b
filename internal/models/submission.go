package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Page map mapping states.
const (
	MappingComplete   = "complete"
	MappingIncomplete = "incomplete"
)

// Submission is an uploaded PDF answering an assignment, either uploaded by
// the student or by an instructor on the student's behalf.
type Submission struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	AssignmentID uint               `gorm:"not null;index" json:"assignment_id"`
	UploadedByID *uint              `json:"uploaded_by_id"`
	StudentID    *uint              `gorm:"index" json:"student_id"`
	FileURL      string             `gorm:"size:512;not null" json:"file_url"`
	FileName     string             `gorm:"size:255" json:"file_name"`
	SizeBytes    int64              `json:"size_bytes"`
	Checksum     string             `gorm:"size:64" json:"checksum"`
	NumPages     int                `gorm:"not null;default:1" json:"num_pages"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Assignment   Assignment         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student      *User              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UploadedBy   *User              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	PageMap      *SubmissionPageMap `json:"-"`
}

// StudentName resolves the label shown to graders.
func (s Submission) StudentName() string {
	if s.Student == nil || s.Student.ID == 0 {
		return "Unassigned"
	}
	return s.Student.DisplayName()
}

// BelongsTo reports whether the submission was made for the given user.
func (s Submission) BelongsTo(userID uint) bool {
	return s.StudentID != nil && *s.StudentID == userID
}

// PageMap maps question ids (as strings) to the submission pages answering them.
type PageMap map[string][]int

// PagesFor returns the pages mapped to the question.
func (p PageMap) PagesFor(questionID uint) []int {
	if p == nil {
		return nil
	}
	return p[strconv.FormatUint(uint64(questionID), 10)]
}

// SubmissionPageMap stores the question-to-page mapping of a submission.
type SubmissionPageMap struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	SubmissionID uint                        `gorm:"not null;uniqueIndex" json:"submission_id"`
	PageMap      datatypes.JSONType[PageMap] `gorm:"type:json" json:"page_map"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// MappingStatus is complete when every question has at least one mapped page.
func MappingStatus(pageMap *SubmissionPageMap, questions []Question) string {
	if len(questions) == 0 {
		return MappingComplete
	}
	if pageMap == nil {
		return MappingIncomplete
	}

	mapping := pageMap.PageMap.Data()
	for _, question := range questions {
		if len(mapping.PagesFor(question.ID)) == 0 {
			return MappingIncomplete
		}
	}
	return MappingComplete
}
