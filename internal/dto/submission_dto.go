package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// PageCountRequest updates the number of pages of a submission.
type PageCountRequest struct {
	NumPages int `json:"num_pages" validate:"required,gte=1,lte=2000"`
}

// PageMapRequest replaces the question-to-page mapping of a submission.
type PageMapRequest struct {
	PageMap map[string][]int `json:"page_map"`
}

// SubmissionResponse is the serialized submission.
type SubmissionResponse struct {
	ID            uint             `json:"id"`
	AssignmentID  uint             `json:"assignment_id"`
	StudentID     *uint            `json:"student_id"`
	StudentName   string           `json:"student_name"`
	UploadedByID  *uint            `json:"uploaded_by_id"`
	FileURL       string           `json:"file_url"`
	FileName      string           `json:"file_name"`
	SizeBytes     int64            `json:"size_bytes"`
	Checksum      string           `json:"checksum"`
	NumPages      int              `json:"num_pages"`
	PageMap       map[string][]int `json:"page_map"`
	MappingStatus string           `json:"mapping_status,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewSubmissionResponse converts a model into a DTO. Mapping status is only
// derived when the assignment questions are known.
func NewSubmissionResponse(submission models.Submission, questions []models.Question) SubmissionResponse {
	pageMap := map[string][]int{}
	if submission.PageMap != nil {
		for key, pages := range submission.PageMap.PageMap.Data() {
			pageMap[key] = pages
		}
	}

	response := SubmissionResponse{
		ID:           submission.ID,
		AssignmentID: submission.AssignmentID,
		StudentID:    submission.StudentID,
		StudentName:  submission.StudentName(),
		UploadedByID: submission.UploadedByID,
		FileURL:      submission.FileURL,
		FileName:     submission.FileName,
		SizeBytes:    submission.SizeBytes,
		Checksum:     submission.Checksum,
		NumPages:     submission.NumPages,
		PageMap:      pageMap,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}
	if questions != nil {
		response.MappingStatus = models.MappingStatus(submission.PageMap, questions)
	}
	return response
}

// NewSubmissionResponseSlice converts submissions into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission, questions []models.Question) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission, questions))
	}
	return responses
}

// SubmissionDetailResponse bundles a submission with the outline it answers.
type SubmissionDetailResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Questions  []QuestionResponse `json:"questions"`
}

// SkippedUpload explains why a file of a bulk upload was not stored.
type SkippedUpload struct {
	FileName  string `json:"file_name"`
	StudentID uint   `json:"student_id,omitempty"`
	Reason    string `json:"reason"`
}

// BulkUploadResponse summarises an instructor bulk upload.
type BulkUploadResponse struct {
	Created []SubmissionResponse `json:"created"`
	Skipped []SkippedUpload      `json:"skipped"`
}

// PageMapResponse reports the page mapping of a submission.
type PageMapResponse struct {
	SubmissionID  uint             `json:"submission_id"`
	NumPages      int              `json:"num_pages"`
	PageMap       map[string][]int `json:"page_map"`
	MappingStatus string           `json:"mapping_status"`
}
