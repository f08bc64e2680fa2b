package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// AssignmentFilter narrows assignment listings within a course.
type AssignmentFilter struct {
	CourseID      uint
	PublishedOnly bool
}

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	UpdateTotalPoints(ctx context.Context, id uint, total decimal.Decimal) error
	Delete(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed assignment repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{}).Where("course_id = ?", filter.CourseID)
	if filter.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}

	var assignments []models.Assignment
	if err := query.Order("due_at IS NULL").Order("due_at ASC").Order("id ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC").Order("id ASC")
		}).
		First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit("Course", "Questions").Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit("Course", "Questions", "TotalPoints").Save(assignment).Error
}

func (r *assignmentRepository) UpdateTotalPoints(ctx context.Context, id uint, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("total_points", total).Error
}

// Delete removes the assignment together with its questions, rubric, submissions and grades.
func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questionIDs := tx.Model(&models.Question{}).Select("id").Where("assignment_id = ?", id)
		submissionIDs := tx.Model(&models.Submission{}).Select("id").Where("assignment_id = ?", id)

		if err := deleteGradesWhere(tx, "question_id IN (?)", questionIDs); err != nil {
			return err
		}
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.RubricItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id IN (?)", submissionIDs).Delete(&models.SubmissionPageMap{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Assignment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// deleteGradesWhere removes grades matching the condition along with their rubric selections.
func deleteGradesWhere(tx *gorm.DB, condition string, args ...interface{}) error {
	gradeIDs := tx.Model(&models.SubmissionGrade{}).Select("id").Where(condition, args...)
	if err := tx.Exec("DELETE FROM "+gradeItemsTable+" WHERE submission_grade_id IN (?)", gradeIDs).Error; err != nil {
		return err
	}
	return tx.Where(condition, args...).Delete(&models.SubmissionGrade{}).Error
}
