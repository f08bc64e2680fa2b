package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// RubricItemRepository defines persistence operations for rubric items.
type RubricItemRepository interface {
	ListByQuestion(ctx context.Context, questionID uint, includeInactive bool) ([]models.RubricItem, error)
	GetByID(ctx context.Context, id uint) (models.RubricItem, error)
	NextOrderIndex(ctx context.Context, questionID uint) (int, error)
	Create(ctx context.Context, item *models.RubricItem) error
	Update(ctx context.Context, item *models.RubricItem) error
	ReplaceActive(ctx context.Context, questionID uint, items []models.RubricItem) ([]models.RubricItem, error)
}

type rubricItemRepository struct {
	db *gorm.DB
}

// NewRubricItemRepository instantiates a GORM-backed rubric item repository.
func NewRubricItemRepository(db *gorm.DB) RubricItemRepository {
	return &rubricItemRepository{db: db}
}

func (r *rubricItemRepository) ListByQuestion(ctx context.Context, questionID uint, includeInactive bool) ([]models.RubricItem, error) {
	query := r.db.WithContext(ctx).Where("question_id = ?", questionID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var items []models.RubricItem
	if err := query.Order("order_index ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *rubricItemRepository) GetByID(ctx context.Context, id uint) (models.RubricItem, error) {
	var item models.RubricItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return models.RubricItem{}, err
	}
	return item, nil
}

func (r *rubricItemRepository) NextOrderIndex(ctx context.Context, questionID uint) (int, error) {
	var max *int
	if err := r.db.WithContext(ctx).
		Model(&models.RubricItem{}).
		Where("question_id = ?", questionID).
		Select("MAX(order_index)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (r *rubricItemRepository) Create(ctx context.Context, item *models.RubricItem) error {
	return r.db.WithContext(ctx).Omit("Question").Create(item).Error
}

func (r *rubricItemRepository) Update(ctx context.Context, item *models.RubricItem) error {
	return r.db.WithContext(ctx).Omit("Question").Save(item).Error
}

// ReplaceActive deactivates the current rubric of the question and inserts the new items.
// Deactivated items stay referenced by grades recorded earlier.
func (r *rubricItemRepository) ReplaceActive(ctx context.Context, questionID uint, items []models.RubricItem) ([]models.RubricItem, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RubricItem{}).
			Where("question_id = ? AND is_active = ?", questionID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].QuestionID = questionID
		}
		return tx.Omit("Question").Create(&items).Error
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.RubricItem{}
	}
	return items, nil
}
