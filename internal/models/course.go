package models

import "time"

// Course terms.
const (
	TermFall   = "fall"
	TermWinter = "winter"
	TermSpring = "spring"
	TermSummer = "summer"
)

// Membership roles inside a course.
const (
	MembershipInstructor = "instructor"
	MembershipTA         = "ta"
	MembershipStudent    = "student"
)

// Course groups assignments and a roster of members.
type Course struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	Title       string             `gorm:"size:255;not null" json:"title"`
	Code        string             `gorm:"size:20" json:"code"`
	Description string             `gorm:"type:text" json:"description"`
	OwnerID     *uint              `json:"owner_id"`
	InviteCode  string             `gorm:"size:16;uniqueIndex;not null" json:"invite_code"`
	Term        string             `gorm:"size:10;not null;default:spring" json:"term"`
	Year        int                `gorm:"not null" json:"year"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Owner       *User              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Memberships []CourseMembership `json:"-"`
}

// CourseMembership links a user to a course with a role.
type CourseMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_membership_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_membership_user_course" json:"course_id"`
	Role      string    `gorm:"size:12;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
	Course    Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsInstructor reports whether the membership grants instructor rights.
func (m CourseMembership) IsInstructor() bool {
	return m.Role == MembershipInstructor
}
