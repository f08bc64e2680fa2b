package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
)

// GradeUpdateRequest replaces the rubric selection of a grade. When
// ExpectedVersion is set the update fails if the grade changed meanwhile.
type GradeUpdateRequest struct {
	SelectedItemIDs []uint `json:"selected_item_ids" validate:"dive,gt=0"`
	ExpectedVersion *int   `json:"expected_version" validate:"omitempty,gte=1"`
}

// GradeResponse is the grading state of one submission for one question.
type GradeResponse struct {
	ID              uint                 `json:"id"`
	SubmissionID    uint                 `json:"submission_id"`
	QuestionID      uint                 `json:"question_id"`
	TotalPoints     float64              `json:"total_points"`
	MaxPoints       float64              `json:"max_points"`
	Version         int                  `json:"version"`
	SelectedItemIDs []uint               `json:"selected_item_ids"`
	SelectedItems   []RubricItemResponse `json:"selected_items"`
	GradedByID      *uint                `json:"graded_by_id"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// NewGradeResponse converts a grade into a DTO.
func NewGradeResponse(grade models.SubmissionGrade, question models.Question) GradeResponse {
	return GradeResponse{
		ID:              grade.ID,
		SubmissionID:    grade.SubmissionID,
		QuestionID:      grade.QuestionID,
		TotalPoints:     Points(grade.TotalPoints),
		MaxPoints:       Points(question.MaxPoints),
		Version:         grade.Version,
		SelectedItemIDs: grade.SelectedItemIDs(),
		SelectedItems:   NewRubricItemResponseSlice(grade.SelectedItems),
		GradedByID:      grade.GradedByID,
		UpdatedAt:       grade.UpdatedAt,
	}
}

// GradeDetailResponse is returned when a grader opens a (submission, question) pair.
type GradeDetailResponse struct {
	Grade       GradeResponse        `json:"grade"`
	RubricItems []RubricItemResponse `json:"rubric_items"`
	Created     bool                 `json:"created"`
}

// QuestionProgressResponse reports how far grading of one question got.
type QuestionProgressResponse struct {
	QuestionID         uint   `json:"question_id"`
	QuestionTitle      string `json:"question_title"`
	TotalSubmissions   int    `json:"total_submissions"`
	GradedSubmissions  int    `json:"graded_submissions"`
	ProgressPercentage int    `json:"progress_percentage"`
}

// QuestionSubmissionRow is one line of the per-question grading list.
type QuestionSubmissionRow struct {
	RowNumber    int      `json:"row_number"`
	SubmissionID uint     `json:"submission_id"`
	StudentID    *uint    `json:"student_id"`
	StudentName  string   `json:"student_name"`
	Score        *float64 `json:"score"`
	IsGraded     bool     `json:"is_graded"`
}

// GradingNavigationResponse positions a submission within the grading queue of a question.
type GradingNavigationResponse struct {
	SubmissionID         uint    `json:"submission_id"`
	StudentName          string  `json:"student_name"`
	QuestionID           uint    `json:"question_id"`
	QuestionTitle        string  `json:"question_title"`
	QuestionPoints       float64 `json:"question_points"`
	CurrentIndex         int     `json:"current_submission_index"`
	TotalSubmissions     int     `json:"total_submissions"`
	GradedSubmissions    int     `json:"graded_submissions"`
	ProgressPercentage   int     `json:"progress_percentage"`
	PageNumber           int     `json:"page_number"`
	FileURL              string  `json:"file_url"`
	PreviousSubmissionID *uint   `json:"previous_submission_id"`
	NextSubmissionID     *uint   `json:"next_submission_id"`
}

// AssignmentStatisticsResponse summarises recorded grades of an assignment.
type AssignmentStatisticsResponse struct {
	AssignmentID       uint    `json:"assignment_id"`
	Minimum            float64 `json:"minimum"`
	Maximum            float64 `json:"maximum"`
	Mean               float64 `json:"mean"`
	Median             float64 `json:"median"`
	StdDev             float64 `json:"std_dev"`
	Count              int     `json:"count"`
	TotalStudents      int     `json:"total_students"`
	GradedStudents     int     `json:"graded_students"`
	ProgressPercentage int     `json:"progress_percentage"`
}

// NewAssignmentStatisticsResponse renders a summary.
func NewAssignmentStatisticsResponse(assignmentID uint, summary grading.Summary) AssignmentStatisticsResponse {
	return AssignmentStatisticsResponse{
		AssignmentID: assignmentID,
		Minimum:      Points(summary.Min),
		Maximum:      Points(summary.Max),
		Mean:         Points(summary.Mean),
		Median:       Points(summary.Median),
		StdDev:       Points(summary.StdDev),
		Count:        summary.Count,
	}
}

// QuestionScore is one question line of a student's grade report.
type QuestionScore struct {
	QuestionID    uint     `json:"question_id"`
	QuestionTitle string   `json:"question_title"`
	MaxPoints     float64  `json:"max_points"`
	Score         *float64 `json:"score"`
	IsGraded      bool     `json:"is_graded"`
}

// StudentGradeResponse is a student's view of the grade of one submission.
type StudentGradeResponse struct {
	SubmissionID uint            `json:"submission_id"`
	AssignmentID uint            `json:"assignment_id"`
	StudentID    *uint           `json:"student_id"`
	StudentName  string          `json:"student_name"`
	TotalScore   float64         `json:"total_score"`
	MaxScore     float64         `json:"max_score"`
	IsGraded     bool            `json:"is_graded"`
	Questions    []QuestionScore `json:"questions"`
}

// GradeEvent is broadcast whenever a grade changes.
type GradeEvent struct {
	Type         string    `json:"type"`
	AssignmentID uint      `json:"assignment_id"`
	SubmissionID uint      `json:"submission_id"`
	QuestionID   uint      `json:"question_id"`
	TotalPoints  float64   `json:"total_points"`
	Version      int       `json:"version"`
	GradedByID   *uint     `json:"graded_by_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}
