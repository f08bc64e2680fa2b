package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
)

var (
	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the operation clashes with the current state.
	ErrConflict = errors.New("conflict")
	// ErrNotEnrolled indicates the actor is not a member of the course.
	ErrNotEnrolled = errors.New("not enrolled in course")
	// ErrFileRequired indicates an upload request carried no file.
	ErrFileRequired = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the file is not a PDF.
	ErrUploadTypeNotAllowed = errors.New("only PDF files are allowed")
	// ErrInvalidPageMap indicates the page map document is malformed.
	ErrInvalidPageMap = errors.New("invalid page map")
	// ErrInvalidDeadline indicates the late deadline precedes the regular one.
	ErrInvalidDeadline = errors.New("late due date must not precede the due date")
	// ErrEmptyAfterSanitize indicates user text was reduced to nothing by the HTML policy.
	ErrEmptyAfterSanitize = errors.New("text empty after sanitization")
)

var (
	// ErrAlreadySubmitted indicates the student already has a submission for the assignment.
	ErrAlreadySubmitted = fmt.Errorf("submission already exists: %w", ErrConflict)
	// ErrSubmissionClosed indicates the assignment no longer accepts uploads.
	ErrSubmissionClosed = fmt.Errorf("submission window closed: %w", ErrConflict)
	// ErrVersionConflict indicates a grade changed since the caller read it.
	ErrVersionConflict = fmt.Errorf("grade was modified concurrently: %w", ErrConflict)
)

var (
	ErrUserNotFound       = fmt.Errorf("user: %w", grading.ErrNotFound)
	ErrCourseNotFound     = fmt.Errorf("course: %w", grading.ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("membership: %w", grading.ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("assignment: %w", grading.ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("question: %w", grading.ErrNotFound)
	ErrRubricItemNotFound = fmt.Errorf("rubric item: %w", grading.ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("submission: %w", grading.ErrNotFound)
)

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID   uint
	Role string
}

// IsInstructor reports whether the actor carries the global instructor role.
func (a Actor) IsInstructor() bool {
	return a.Role == models.RoleInstructor
}
