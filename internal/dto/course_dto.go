package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// CourseCreateRequest describes the payload for creating a course.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=255"`
	Code        string `json:"code" validate:"omitempty,max=20"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Term        string `json:"term" validate:"required,oneof=fall winter spring summer"`
	Year        int    `json:"year" validate:"required,gte=2000,lte=2100"`
}

// CourseUpdateRequest captures partial course updates.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=2,max=255"`
	Code        *string `json:"code" validate:"omitempty,max=20"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Term        *string `json:"term" validate:"omitempty,oneof=fall winter spring summer"`
	Year        *int    `json:"year" validate:"omitempty,gte=2000,lte=2100"`
}

// EnrollRequest joins a course by invite code.
type EnrollRequest struct {
	InviteCode string `json:"invite_code" validate:"required,min=4,max=16"`
}

// RosterAddRequest adds an existing user to a course roster.
type RosterAddRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CourseResponse is the serialized course.
type CourseResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	OwnerID     *uint     `json:"owner_id"`
	InviteCode  string    `json:"invite_code,omitempty"`
	Term        string    `json:"term"`
	Year        int       `json:"year"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCourseResponse converts a model into a DTO. The invite code is only
// exposed to instructors.
func NewCourseResponse(course models.Course, showInvite bool) CourseResponse {
	response := CourseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Code:        course.Code,
		Description: course.Description,
		OwnerID:     course.OwnerID,
		Term:        course.Term,
		Year:        course.Year,
		CreatedAt:   course.CreatedAt,
		UpdatedAt:   course.UpdatedAt,
	}
	if showInvite {
		response.InviteCode = course.InviteCode
	}
	return response
}

// EnrollResponse reports the outcome of an invite-code enrollment.
type EnrollResponse struct {
	Course          CourseResponse `json:"course"`
	Role            string         `json:"role"`
	AlreadyEnrolled bool           `json:"already_enrolled"`
}

// MembershipResponse is one roster entry.
type MembershipResponse struct {
	ID        uint         `json:"id"`
	CourseID  uint         `json:"course_id"`
	Role      string       `json:"role"`
	User      UserResponse `json:"user"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewMembershipResponse converts a membership into a DTO.
func NewMembershipResponse(membership models.CourseMembership) MembershipResponse {
	return MembershipResponse{
		ID:        membership.ID,
		CourseID:  membership.CourseID,
		Role:      membership.Role,
		User:      NewUserResponse(membership.User),
		CreatedAt: membership.CreatedAt,
	}
}

// NewMembershipResponseSlice converts a roster into DTOs.
func NewMembershipResponseSlice(memberships []models.CourseMembership) []MembershipResponse {
	responses := make([]MembershipResponse, 0, len(memberships))
	for _, membership := range memberships {
		responses = append(responses, NewMembershipResponse(membership))
	}
	return responses
}
