package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bargeh-api/internal/models"
)

func TestSubmissionRepositoryCreateAddsEmptyPageMap(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	repo := NewSubmissionRepository(db)

	loaded, err := repo.GetByID(context.Background(), f.submission.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.PageMap)
	require.Empty(t, loaded.PageMap.PageMap.Data())
	require.Equal(t, "Sam", loaded.StudentName())
}

func TestSubmissionRepositorySavePageMap(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	saved, err := repo.SavePageMap(ctx, f.submission.ID, models.PageMap{"1": {1, 2}})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, saved.PageMap.Data().PagesFor(1))

	var maps int64
	require.NoError(t, db.Model(&models.SubmissionPageMap{}).Count(&maps).Error)
	require.Equal(t, int64(1), maps)

	loaded, err := repo.GetByID(ctx, f.submission.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, loaded.PageMap.PageMap.Data().PagesFor(1))
}

func TestSubmissionRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	ctx := context.Background()

	_, _, err := NewSubmissionGradeRepository(db).GetOrCreate(ctx, f.submission.ID, f.question)
	require.NoError(t, err)

	repo := NewSubmissionRepository(db)
	require.NoError(t, repo.Delete(ctx, f.submission.ID))

	var grades, maps int64
	require.NoError(t, db.Model(&models.SubmissionGrade{}).Count(&grades).Error)
	require.NoError(t, db.Model(&models.SubmissionPageMap{}).Count(&maps).Error)
	require.Zero(t, grades)
	require.Zero(t, maps)

	count, err := repo.CountByAssignment(ctx, f.assignment.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAssignmentRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	f := seedGrading(t, db)
	ctx := context.Background()

	_, _, err := NewSubmissionGradeRepository(db).GetOrCreate(ctx, f.submission.ID, f.question)
	require.NoError(t, err)

	require.NoError(t, NewAssignmentRepository(db).Delete(ctx, f.assignment.ID))

	for _, model := range []interface{}{&models.Question{}, &models.RubricItem{}, &models.Submission{}, &models.SubmissionGrade{}, &models.Assignment{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
}
