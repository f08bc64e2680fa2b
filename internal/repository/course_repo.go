package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// CourseFilter narrows course listings.
type CourseFilter struct {
	MemberID *uint
	Search   string
}

// CourseRepository defines persistence operations for courses and their rosters.
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter) ([]models.Course, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetByInviteCode(ctx context.Context, code string) (models.Course, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course, owner *models.CourseMembership) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
	CountAssignments(ctx context.Context, courseID uint) (int64, error)

	ListMemberships(ctx context.Context, courseID uint) ([]models.CourseMembership, error)
	GetMembership(ctx context.Context, courseID, userID uint) (models.CourseMembership, error)
	GetMembershipByID(ctx context.Context, courseID, membershipID uint) (models.CourseMembership, error)
	CreateMembership(ctx context.Context, membership *models.CourseMembership) error
	DeleteMembership(ctx context.Context, id uint) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})

	if filter.MemberID != nil {
		members := r.db.Model(&models.CourseMembership{}).Select("course_id").Where("user_id = ?", *filter.MemberID)
		query = query.Where("id IN (?)", members)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}

	var courses []models.Course
	if err := query.Order("year DESC").Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) GetByInviteCode(ctx context.Context, code string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).
		Where("invite_code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Course{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course, owner *models.CourseMembership) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(course).Error; err != nil {
			return err
		}
		if owner == nil {
			return nil
		}
		owner.CourseID = course.ID
		return tx.Omit("User", "Course").Create(owner).Error
	})
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit("Owner", "Memberships").Save(course).Error
}

func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&models.CourseMembership{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *courseRepository) CountAssignments(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Assignment{}).Where("course_id = ?", courseID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *courseRepository) ListMemberships(ctx context.Context, courseID uint) ([]models.CourseMembership, error) {
	var memberships []models.CourseMembership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("course_id = ?", courseID).
		Order("role ASC").
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *courseRepository) GetMembership(ctx context.Context, courseID, userID uint) (models.CourseMembership, error) {
	var membership models.CourseMembership
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		First(&membership).Error; err != nil {
		return models.CourseMembership{}, err
	}
	return membership, nil
}

func (r *courseRepository) GetMembershipByID(ctx context.Context, courseID, membershipID uint) (models.CourseMembership, error) {
	var membership models.CourseMembership
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("course_id = ?", courseID).
		First(&membership, membershipID).Error; err != nil {
		return models.CourseMembership{}, err
	}
	return membership, nil
}

func (r *courseRepository) CreateMembership(ctx context.Context, membership *models.CourseMembership) error {
	return r.db.WithContext(ctx).Omit("User", "Course").Create(membership).Error
}

func (r *courseRepository) DeleteMembership(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.CourseMembership{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
