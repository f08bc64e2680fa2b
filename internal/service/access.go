package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

// accessControl resolves course scoped permissions shared by the course, assignment,
// submission and grading services.
type accessControl struct {
	courses     repository.CourseRepository
	assignments repository.AssignmentRepository
}

func (a accessControl) course(ctx context.Context, courseID uint) (models.Course, error) {
	course, err := a.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

func (a accessControl) membership(ctx context.Context, actor Actor, courseID uint) (models.CourseMembership, error) {
	membership, err := a.courses.GetMembership(ctx, courseID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CourseMembership{}, ErrForbidden
		}
		return models.CourseMembership{}, err
	}
	return membership, nil
}

// requireStaff allows course instructors and teaching assistants.
func (a accessControl) requireStaff(ctx context.Context, actor Actor, courseID uint) error {
	membership, err := a.membership(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if membership.Role != models.MembershipInstructor && membership.Role != models.MembershipTA {
		return ErrForbidden
	}
	return nil
}

// requireInstructor allows course instructors only.
func (a accessControl) requireInstructor(ctx context.Context, actor Actor, courseID uint) error {
	membership, err := a.membership(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if !membership.IsInstructor() {
		return ErrForbidden
	}
	return nil
}

func (a accessControl) assignment(ctx context.Context, assignmentID uint) (models.Assignment, error) {
	assignment, err := a.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

// staffAssignment loads the assignment and checks the actor grades in its course.
func (a accessControl) staffAssignment(ctx context.Context, actor Actor, assignmentID uint) (models.Assignment, error) {
	assignment, err := a.assignment(ctx, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}
	if err := a.requireStaff(ctx, actor, assignment.CourseID); err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

// memberAssignment loads an assignment visible to the actor. Students only see
// published assignments of courses they are enrolled in.
func (a accessControl) memberAssignment(ctx context.Context, actor Actor, assignmentID uint) (models.Assignment, models.CourseMembership, error) {
	assignment, err := a.assignment(ctx, assignmentID)
	if err != nil {
		return models.Assignment{}, models.CourseMembership{}, err
	}
	membership, err := a.membership(ctx, actor, assignment.CourseID)
	if err != nil {
		return models.Assignment{}, models.CourseMembership{}, err
	}
	if membership.Role == models.MembershipStudent && !assignment.IsPublished {
		return models.Assignment{}, models.CourseMembership{}, ErrAssignmentNotFound
	}
	return assignment, membership, nil
}
