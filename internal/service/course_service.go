package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

const inviteCodeAttempts = 5

// CourseService exposes course, enrollment and roster use cases.
type CourseService interface {
	List(ctx context.Context, actor Actor, search string) ([]dto.CourseResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Enroll(ctx context.Context, actor Actor, payload dto.EnrollRequest) (dto.EnrollResponse, error)
	Unenroll(ctx context.Context, actor Actor, courseID uint) error
	Roster(ctx context.Context, actor Actor, courseID uint) ([]dto.MembershipResponse, error)
	AddMember(ctx context.Context, actor Actor, courseID uint, payload dto.RosterAddRequest) (dto.MembershipResponse, error)
	RemoveMember(ctx context.Context, actor Actor, courseID, membershipID uint) error
}

type courseService struct {
	repo      repository.CourseRepository
	users     repository.UserRepository
	access    accessControl
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer textSanitizer
	logger    zerolog.Logger
	newCode   func() string
}

// NewCourseService builds the course service.
func NewCourseService(repo repository.CourseRepository, users repository.UserRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return &courseService{
		repo:      repo,
		users:     users,
		access:    accessControl{courses: repo},
		activity:  activity,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger.With().Str("component", "course_service").Logger(),
		newCode:   newInviteCode,
	}
}

func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *courseService) List(ctx context.Context, actor Actor, search string) ([]dto.CourseResponse, error) {
	filter := repository.CourseFilter{Search: search}
	if !actor.IsInstructor() {
		filter.MemberID = &actor.ID
	}

	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, dto.NewCourseResponse(course, actor.IsInstructor()))
	}
	return responses, nil
}

func (s *courseService) Get(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error) {
	course, err := s.access.course(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	membership, err := s.access.membership(ctx, actor, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course, membership.Role != models.MembershipStudent), nil
}

func (s *courseService) Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if !actor.IsInstructor() {
		return dto.CourseResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	title, err := s.sanitizer.RequiredPlain(payload.Title)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	code, err := s.uniqueInviteCode(ctx)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	ownerID := actor.ID
	course := models.Course{
		Title:       title,
		Code:        s.sanitizer.Plain(payload.Code),
		Description: s.sanitizer.Rich(payload.Description),
		OwnerID:     &ownerID,
		InviteCode:  code,
		Term:        payload.Term,
		Year:        payload.Year,
	}
	owner := models.CourseMembership{UserID: actor.ID, Role: models.MembershipInstructor}

	if err := s.repo.Create(ctx, &course, &owner); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("owner_id", actor.ID).Msg("course created")
	return dto.NewCourseResponse(course, true), nil
}

func (s *courseService) uniqueInviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code := s.newCode()
		exists, err := s.repo.InviteCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique invite code")
}

func (s *courseService) Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.access.course(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if err := s.access.requireInstructor(ctx, actor, id); err != nil {
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		title, err := s.sanitizer.RequiredPlain(*payload.Title)
		if err != nil {
			return dto.CourseResponse{}, err
		}
		course.Title = title
	}
	if payload.Code != nil {
		course.Code = s.sanitizer.Plain(*payload.Code)
	}
	if payload.Description != nil {
		course.Description = s.sanitizer.Rich(*payload.Description)
	}
	if payload.Term != nil {
		course.Term = *payload.Term
	}
	if payload.Year != nil {
		course.Year = *payload.Year
	}

	if err := s.repo.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Msg("course updated")
	return dto.NewCourseResponse(course, true), nil
}

func (s *courseService) Delete(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.access.course(ctx, id); err != nil {
		return err
	}
	if err := s.access.requireInstructor(ctx, actor, id); err != nil {
		return err
	}

	count, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	s.logger.Info().Uint("course_id", id).Msg("course deleted")
	return nil
}

func (s *courseService) Enroll(ctx context.Context, actor Actor, payload dto.EnrollRequest) (dto.EnrollResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollResponse{}, err
	}

	course, err := s.repo.GetByInviteCode(ctx, payload.InviteCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollResponse{}, ErrCourseNotFound
		}
		return dto.EnrollResponse{}, err
	}

	existing, err := s.repo.GetMembership(ctx, course.ID, actor.ID)
	if err == nil {
		return dto.EnrollResponse{
			Course:          dto.NewCourseResponse(course, existing.Role != models.MembershipStudent),
			Role:            existing.Role,
			AlreadyEnrolled: true,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EnrollResponse{}, err
	}

	role := models.MembershipStudent
	if actor.IsInstructor() {
		role = models.MembershipInstructor
	}
	membership := models.CourseMembership{UserID: actor.ID, CourseID: course.ID, Role: role}
	if err := s.repo.CreateMembership(ctx, &membership); err != nil {
		return dto.EnrollResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("user_id", actor.ID).Str("role", role).Msg("user enrolled")
	return dto.EnrollResponse{
		Course: dto.NewCourseResponse(course, role != models.MembershipStudent),
		Role:   role,
	}, nil
}

func (s *courseService) Unenroll(ctx context.Context, actor Actor, courseID uint) error {
	if _, err := s.access.course(ctx, courseID); err != nil {
		return err
	}

	membership, err := s.repo.GetMembership(ctx, courseID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotEnrolled
		}
		return err
	}

	if err := s.repo.DeleteMembership(ctx, membership.ID); err != nil {
		return err
	}

	s.logger.Info().Uint("course_id", courseID).Uint("user_id", actor.ID).Msg("user unenrolled")
	return nil
}

func (s *courseService) Roster(ctx context.Context, actor Actor, courseID uint) ([]dto.MembershipResponse, error) {
	if _, err := s.access.course(ctx, courseID); err != nil {
		return nil, err
	}
	if err := s.access.requireStaff(ctx, actor, courseID); err != nil {
		return nil, err
	}

	memberships, err := s.repo.ListMemberships(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewMembershipResponseSlice(memberships), nil
}

func (s *courseService) AddMember(ctx context.Context, actor Actor, courseID uint, payload dto.RosterAddRequest) (dto.MembershipResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MembershipResponse{}, err
	}
	if _, err := s.access.course(ctx, courseID); err != nil {
		return dto.MembershipResponse{}, err
	}
	if err := s.access.requireInstructor(ctx, actor, courseID); err != nil {
		return dto.MembershipResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MembershipResponse{}, ErrUserNotFound
		}
		return dto.MembershipResponse{}, err
	}

	if _, err := s.repo.GetMembership(ctx, courseID, user.ID); err == nil {
		return dto.MembershipResponse{}, ErrConflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.MembershipResponse{}, err
	}

	role := models.MembershipStudent
	if user.IsInstructor {
		role = models.MembershipInstructor
	}
	membership := models.CourseMembership{UserID: user.ID, CourseID: courseID, Role: role}
	if err := s.repo.CreateMembership(ctx, &membership); err != nil {
		return dto.MembershipResponse{}, err
	}
	membership.User = user

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   courseID,
		Action:     ActionMemberAdded,
		EntityType: "membership",
		EntityID:   &membership.ID,
		Metadata:   map[string]interface{}{"user_id": user.ID, "role": role},
	})

	return dto.NewMembershipResponse(membership), nil
}

func (s *courseService) RemoveMember(ctx context.Context, actor Actor, courseID, membershipID uint) error {
	if _, err := s.access.course(ctx, courseID); err != nil {
		return err
	}
	if err := s.access.requireInstructor(ctx, actor, courseID); err != nil {
		return err
	}

	membership, err := s.repo.GetMembershipByID(ctx, courseID, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMembershipNotFound
		}
		return err
	}

	if err := s.repo.DeleteMembership(ctx, membership.ID); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		CourseID:   courseID,
		Action:     ActionMemberRemoved,
		EntityType: "membership",
		EntityID:   &membership.ID,
		Metadata:   map[string]interface{}{"user_id": membership.UserID, "role": membership.Role},
	})
	return nil
}
