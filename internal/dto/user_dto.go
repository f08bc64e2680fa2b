package dto

import (
	"time"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// UserCreateRequest provisions a user record for an externally authenticated account.
type UserCreateRequest struct {
	Email        string `json:"email" validate:"required,email,max=255"`
	Name         string `json:"name" validate:"omitempty,max=150"`
	IsInstructor bool   `json:"is_instructor"`
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsInstructor bool      `json:"is_instructor"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.DisplayName(),
		Role:         user.Role(),
		IsInstructor: user.IsInstructor,
		CreatedAt:    user.CreatedAt,
	}
}
