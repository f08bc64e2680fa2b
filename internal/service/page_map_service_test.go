package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
)

func setupPageMapService(t *testing.T) (PageMapService, courseFixture, repos) {
	t.Helper()
	db := setupServiceDB(t)
	fixture := seedCourse(t, db)
	r := newRepos(db)
	svc, err := NewPageMapService(r.submissions, r.questions, r.assignments, r.courses, testLogger())
	require.NoError(t, err)
	return svc, fixture, r
}

func questionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestPageMapServiceUpdate(t *testing.T) {
	svc, f, r := setupPageMapService(t)
	ctx := context.Background()

	second, err := r.questions.CreateBatch(ctx, []models.Question{{AssignmentID: f.assignment.ID, Number: 2, Title: "Q2", MaxPoints: decimal.NewFromInt(5)}})
	require.NoError(t, err)

	partial, err := svc.Update(ctx, f.studentActor(), f.submission.ID, dto.PageMapRequest{
		PageMap: map[string][]int{questionKey(f.question.ID): {3, 1}},
	})
	require.NoError(t, err)
	require.Equal(t, models.MappingIncomplete, partial.MappingStatus)
	require.Equal(t, []int{1, 3}, partial.PageMap[questionKey(f.question.ID)])

	complete, err := svc.Update(ctx, f.instructorActor(), f.submission.ID, dto.PageMapRequest{
		PageMap: map[string][]int{
			questionKey(f.question.ID): {1},
			questionKey(second[0].ID):  {2, 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.MappingComplete, complete.MappingStatus)

	fetched, err := svc.Get(ctx, f.taActor(), f.submission.ID)
	require.NoError(t, err)
	require.Equal(t, complete.PageMap, fetched.PageMap)
	require.Equal(t, 3, fetched.NumPages)
}

func TestPageMapServiceRejectsInvalidDocuments(t *testing.T) {
	svc, f, _ := setupPageMapService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, f.instructorActor(), f.submission.ID, dto.PageMapRequest{
		PageMap: map[string][]int{questionKey(f.question.ID): {4}},
	})
	require.ErrorIs(t, err, grading.ErrInvalidRange)

	_, err = svc.Update(ctx, f.instructorActor(), f.submission.ID, dto.PageMapRequest{
		PageMap: map[string][]int{"9999": {1}},
	})
	require.ErrorIs(t, err, ErrInvalidPageMap)

	_, err = svc.Update(ctx, f.instructorActor(), f.submission.ID, dto.PageMapRequest{
		PageMap: map[string][]int{"question-1": {1}},
	})
	require.ErrorIs(t, err, ErrInvalidPageMap)

	_, err = svc.Update(ctx, f.instructorActor(), f.submission.ID, dto.PageMapRequest{
		PageMap: map[string][]int{questionKey(f.question.ID): {1, 1}},
	})
	require.ErrorIs(t, err, ErrInvalidPageMap)

	_, err = svc.Update(ctx, f.studentActor(), f.submission2.ID, dto.PageMapRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPageMapServiceEmptyMapIsComplete(t *testing.T) {
	svc, f, r := setupPageMapService(t)
	ctx := context.Background()

	require.NoError(t, r.questions.Delete(ctx, f.question.ID))

	response, err := svc.Get(ctx, f.instructorActor(), f.submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.MappingComplete, response.MappingStatus)
	require.Empty(t, response.PageMap)
}
