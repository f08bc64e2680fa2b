package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/models"
)

func TestQuestionRepositoryDeleteCascadesRubricAndGrades(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	ctx := context.Background()

	grades := NewSubmissionGradeRepository(db)
	grade, _, err := grades.GetOrCreate(ctx, f.submission.ID, f.question)
	require.NoError(t, err)
	require.NoError(t, grades.UpdateSelection(ctx, &grade, []models.RubricItem{f.items[0]}, 0))

	repo := NewQuestionRepository(db)
	require.NoError(t, repo.Delete(ctx, f.question.ID))

	var items, gradeRows, links int64
	require.NoError(t, db.Model(&models.RubricItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&models.SubmissionGrade{}).Count(&gradeRows).Error)
	require.NoError(t, db.Table(gradeItemsTable).Count(&links).Error)
	require.Zero(t, items)
	require.Zero(t, gradeRows)
	require.Zero(t, links)

	require.ErrorIs(t, repo.Delete(ctx, f.question.ID), gorm.ErrRecordNotFound)
}

func TestQuestionRepositoryReplaceAll(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	ctx := context.Background()
	repo := NewQuestionRepository(db)

	created, err := repo.ReplaceAll(ctx, f.assignment.ID, []models.Question{
		{Number: 1, Title: "Part A", MaxPoints: decimal.NewFromInt(5), OrderIndex: 0},
		{Number: 2, Title: "Part B", MaxPoints: decimal.NewFromFloat(7.5), OrderIndex: 1},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	questions, err := repo.ListByAssignment(ctx, f.assignment.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, "Part A", questions[0].Title)
	require.True(t, decimal.NewFromFloat(7.5).Equal(questions[1].MaxPoints))

	var items int64
	require.NoError(t, db.Model(&models.RubricItem{}).Count(&items).Error)
	require.Zero(t, items)
}

func TestRubricItemRepositoryNextOrderIndexAndFilter(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	ctx := context.Background()
	repo := NewRubricItemRepository(db)

	next, err := repo.NextOrderIndex(ctx, f.question.ID)
	require.NoError(t, err)
	require.Equal(t, 3, next)

	empty := models.Question{AssignmentID: f.assignment.ID, Number: 2, Title: "Q2", MaxPoints: decimal.NewFromInt(1)}
	require.NoError(t, db.Omit("Assignment").Create(&empty).Error)
	next, err = repo.NextOrderIndex(ctx, empty.ID)
	require.NoError(t, err)
	require.Zero(t, next)

	item := f.items[2]
	item.IsActive = false
	require.NoError(t, repo.Update(ctx, &item))

	active, err := repo.ListByQuestion(ctx, f.question.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 2)

	all, err := repo.ListByQuestion(ctx, f.question.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.False(t, all[2].IsActive)
}

func TestRubricItemRepositoryReplaceActiveKeepsHistory(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	ctx := context.Background()
	repo := NewRubricItemRepository(db)

	created, err := repo.ReplaceActive(ctx, f.question.ID, []models.RubricItem{
		{Label: "Perfect", DeltaPoints: decimal.Zero, IsPositive: true, IsActive: true},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, f.question.ID, created[0].QuestionID)

	active, err := repo.ListByQuestion(ctx, f.question.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Perfect", active[0].Label)

	all, err := repo.ListByQuestion(ctx, f.question.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
}
