package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// SubmissionRepository defines persistence operations for submissions and their page maps.
type SubmissionRepository interface {
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
	ListIDsByAssignment(ctx context.Context, assignmentID uint) ([]uint, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	ListByStudent(ctx context.Context, assignmentID, studentID uint) ([]models.Submission, error)
	CountByAssignment(ctx context.Context, assignmentID uint) (int64, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id uint) error
	SavePageMap(ctx context.Context, submissionID uint, mapping models.PageMap) (models.SubmissionPageMap, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates a GORM-backed submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("PageMap").
		Where("assignment_id = ?", assignmentID).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListIDsByAssignment(ctx context.Context, assignmentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assignment_id = ?", assignmentID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("PageMap").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("PageMap").
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Order("id ASC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, assignmentID, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) CountByAssignment(ctx context.Context, assignmentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).Where("assignment_id = ?", assignmentID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create stores the submission with an empty page map.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Assignment", "Student", "UploadedBy", "PageMap").Create(submission).Error; err != nil {
			return err
		}
		pageMap := models.SubmissionPageMap{
			SubmissionID: submission.ID,
			PageMap:      datatypes.NewJSONType(models.PageMap{}),
		}
		if err := tx.Create(&pageMap).Error; err != nil {
			return err
		}
		submission.PageMap = &pageMap
		return nil
	})
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Assignment", "Student", "UploadedBy", "PageMap").Save(submission).Error
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteGradesWhere(tx, "submission_id = ?", id); err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionPageMap{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Submission{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *submissionRepository) SavePageMap(ctx context.Context, submissionID uint, mapping models.PageMap) (models.SubmissionPageMap, error) {
	var pageMap models.SubmissionPageMap
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("submission_id = ?", submissionID).First(&pageMap).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			pageMap = models.SubmissionPageMap{SubmissionID: submissionID}
		case err != nil:
			return err
		}
		pageMap.PageMap = datatypes.NewJSONType(mapping)
		return tx.Save(&pageMap).Error
	})
	if err != nil {
		return models.SubmissionPageMap{}, err
	}
	return pageMap, nil
}
