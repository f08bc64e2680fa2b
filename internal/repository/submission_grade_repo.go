package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
)

const gradeItemsTable = "submission_grade_items"

// ErrVersionConflict is returned when a grade changed since the caller last read it.
var ErrVersionConflict = errors.New("grade version conflict")

// SubmissionGradeRepository defines persistence operations for per-question grades.
type SubmissionGradeRepository interface {
	Get(ctx context.Context, submissionID, questionID uint) (models.SubmissionGrade, error)
	GetOrCreate(ctx context.Context, submissionID uint, question models.Question) (models.SubmissionGrade, bool, error)
	UpdateSelection(ctx context.Context, grade *models.SubmissionGrade, items []models.RubricItem, expectedVersion int) error
	RecomputeByQuestion(ctx context.Context, question models.Question) (int, error)
	ListByQuestion(ctx context.Context, questionID uint) ([]models.SubmissionGrade, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.SubmissionGrade, error)
	ListBySubmissions(ctx context.Context, submissionIDs []uint) ([]models.SubmissionGrade, error)
	CountByQuestion(ctx context.Context, questionID uint) (int64, error)
	CountByAssignment(ctx context.Context, assignmentID uint) (int64, error)
}

type submissionGradeRepository struct {
	db *gorm.DB
}

// NewSubmissionGradeRepository instantiates a GORM-backed grade repository.
func NewSubmissionGradeRepository(db *gorm.DB) SubmissionGradeRepository {
	return &submissionGradeRepository{db: db}
}

func (r *submissionGradeRepository) Get(ctx context.Context, submissionID, questionID uint) (models.SubmissionGrade, error) {
	return r.load(r.db.WithContext(ctx), submissionID, questionID)
}

// GetOrCreate returns the grade for the pair, inserting one worth the question's
// max points with no selection when none exists. Concurrent callers converge on one row.
func (r *submissionGradeRepository) GetOrCreate(ctx context.Context, submissionID uint, question models.Question) (models.SubmissionGrade, bool, error) {
	grade := models.SubmissionGrade{
		SubmissionID: submissionID,
		QuestionID:   question.ID,
		TotalPoints:  question.MaxPoints,
		Version:      1,
	}

	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
			DoNothing: true,
		}).
		Create(&grade)
	if result.Error != nil {
		return models.SubmissionGrade{}, false, result.Error
	}

	loaded, err := r.load(r.db.WithContext(ctx), submissionID, question.ID)
	if err != nil {
		return models.SubmissionGrade{}, false, err
	}
	return loaded, result.RowsAffected > 0, nil
}

// UpdateSelection stores the new total and selection atomically and bumps the version.
// A positive expectedVersion must match the stored version.
func (r *submissionGradeRepository) UpdateSelection(ctx context.Context, grade *models.SubmissionGrade, items []models.RubricItem, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.SubmissionGrade{}).Where("id = ?", grade.ID)
		if expectedVersion > 0 {
			query = query.Where("version = ?", expectedVersion)
		}

		result := query.Updates(map[string]interface{}{
			"total_points": grade.TotalPoints,
			"graded_by_id": grade.GradedByID,
			"version":      gorm.Expr("version + ?", 1),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if expectedVersion > 0 {
				return ErrVersionConflict
			}
			return gorm.ErrRecordNotFound
		}

		association := tx.Model(&models.SubmissionGrade{ID: grade.ID}).Association("SelectedItems")
		if len(items) == 0 {
			if err := association.Clear(); err != nil {
				return err
			}
		} else if err := association.Replace(items); err != nil {
			return err
		}

		reloaded, err := r.load(tx, grade.SubmissionID, grade.QuestionID)
		if err != nil {
			return err
		}
		*grade = reloaded
		return nil
	})
}

// RecomputeByQuestion rewrites the stored totals of the question's grades from
// its current max points and the current deltas of the selected items. Grades
// whose total changes get a new version. It returns how many grades changed.
func (r *submissionGradeRepository) RecomputeByQuestion(ctx context.Context, question models.Question) (int, error) {
	changed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grades []models.SubmissionGrade
		if err := tx.Preload("SelectedItems").
			Where("question_id = ?", question.ID).
			Order("id ASC").
			Find(&grades).Error; err != nil {
			return err
		}

		for _, grade := range grades {
			total := grading.ComputeTotal(question.MaxPoints, grade.SelectedItems)
			if total.Equal(grade.TotalPoints) {
				continue
			}
			if err := tx.Model(&models.SubmissionGrade{}).
				Where("id = ?", grade.ID).
				Updates(map[string]interface{}{
					"total_points": total,
					"version":      gorm.Expr("version + ?", 1),
				}).Error; err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (r *submissionGradeRepository) ListByQuestion(ctx context.Context, questionID uint) ([]models.SubmissionGrade, error) {
	var grades []models.SubmissionGrade
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("submission_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *submissionGradeRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.SubmissionGrade, error) {
	submissions := r.db.Model(&models.Submission{}).Select("id").Where("assignment_id = ?", assignmentID)

	var grades []models.SubmissionGrade
	if err := r.db.WithContext(ctx).
		Where("submission_id IN (?)", submissions).
		Order("submission_id ASC").
		Order("question_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *submissionGradeRepository) ListBySubmissions(ctx context.Context, submissionIDs []uint) ([]models.SubmissionGrade, error) {
	if len(submissionIDs) == 0 {
		return []models.SubmissionGrade{}, nil
	}
	var grades []models.SubmissionGrade
	if err := r.db.WithContext(ctx).
		Where("submission_id IN ?", submissionIDs).
		Order("submission_id ASC").
		Order("question_id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *submissionGradeRepository) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SubmissionGrade{}).Where("question_id = ?", questionID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *submissionGradeRepository) CountByAssignment(ctx context.Context, assignmentID uint) (int64, error) {
	submissions := r.db.Model(&models.Submission{}).Select("id").Where("assignment_id = ?", assignmentID)

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SubmissionGrade{}).
		Where("submission_id IN (?)", submissions).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *submissionGradeRepository) load(db *gorm.DB, submissionID, questionID uint) (models.SubmissionGrade, error) {
	var grade models.SubmissionGrade
	if err := db.
		Preload("SelectedItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC").Order("id ASC")
		}).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		First(&grade).Error; err != nil {
		return models.SubmissionGrade{}, err
	}
	return grade, nil
}
