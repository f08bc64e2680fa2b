package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// QuestionRepository defines persistence operations for assignment questions.
type QuestionRepository interface {
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Question, error)
	GetByID(ctx context.Context, id uint) (models.Question, error)
	CreateBatch(ctx context.Context, questions []models.Question) ([]models.Question, error)
	ReplaceAll(ctx context.Context, assignmentID uint, questions []models.Question) ([]models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates a GORM-backed question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("order_index ASC").
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).
		Preload("RubricItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC").Order("id ASC")
		}).
		First(&question, id).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) CreateBatch(ctx context.Context, questions []models.Question) ([]models.Question, error) {
	if len(questions) == 0 {
		return []models.Question{}, nil
	}
	if err := r.db.WithContext(ctx).Omit("Assignment", "RubricItems").Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// ReplaceAll drops every question of the assignment (with rubric and grades) and inserts the new set.
func (r *questionRepository) ReplaceAll(ctx context.Context, assignmentID uint, questions []models.Question) ([]models.Question, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := tx.Model(&models.Question{}).Select("id").Where("assignment_id = ?", assignmentID)
		if err := deleteQuestionChildren(tx, existing); err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", assignmentID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].AssignmentID = assignmentID
		}
		return tx.Omit("Assignment", "RubricItems").Create(&questions).Error
	})
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []models.Question{}
	}
	return questions, nil
}

func (r *questionRepository) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Omit("Assignment", "RubricItems").Save(question).Error
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteQuestionChildren(tx, []uint{id}); err != nil {
			return err
		}
		result := tx.Delete(&models.Question{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func deleteQuestionChildren(tx *gorm.DB, questionIDs interface{}) error {
	if err := deleteGradesWhere(tx, "question_id IN (?)", questionIDs); err != nil {
		return err
	}
	return tx.Where("question_id IN (?)", questionIDs).Delete(&models.RubricItem{}).Error
}
