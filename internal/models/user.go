package models

import "time"

// Role names carried in access tokens.
const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// User represents an instructor or a student.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:150" json:"name"`
	IsInstructor bool      `gorm:"not null;default:false" json:"is_instructor"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role returns the global role of the user.
func (u User) Role() string {
	if u.IsInstructor {
		return RoleInstructor
	}
	return RoleStudent
}

// DisplayName falls back to the email when no name is set.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
