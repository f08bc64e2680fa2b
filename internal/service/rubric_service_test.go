package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
)

func setupRubricService(t *testing.T) (RubricService, courseFixture, repos, *stubActivity, *stubInvalidator) {
	t.Helper()
	db := setupServiceDB(t)
	fixture := seedCourse(t, db)
	r := newRepos(db)
	activity := &stubActivity{}
	stats := &stubInvalidator{}
	svc := NewRubricService(RubricDeps{
		RubricItems: r.rubricItems,
		Questions:   r.questions,
		Assignments: r.assignments,
		Courses:     r.courses,
		Grades:      r.grades,
		Activity:    activity,
		Stats:       stats,
	}, testValidator(), testLogger())
	return svc, fixture, r, activity, stats
}

func TestRubricServiceCreateAssignsNextOrder(t *testing.T) {
	svc, f, _, activity, _ := setupRubricService(t)

	item, err := svc.Create(context.Background(), f.instructorActor(), f.question.ID, dto.RubricItemCreateRequest{
		Label:       "Bonus",
		DeltaPoints: 2.25,
		IsPositive:  true,
	})
	require.NoError(t, err)
	require.Equal(t, 3, item.OrderIndex)
	require.Equal(t, 2.25, item.DeltaPoints)
	require.True(t, item.IsActive)
	require.Equal(t, []string{ActionRubricCreated}, activity.actions())
}

func TestRubricServiceDeleteIsSoft(t *testing.T) {
	svc, f, r, activity, _ := setupRubricService(t)
	ctx := context.Background()

	grade, _, err := r.grades.GetOrCreate(ctx, f.submission.ID, f.question)
	require.NoError(t, err)
	require.NoError(t, r.grades.UpdateSelection(ctx, &grade, f.items[1:2], 0))

	require.NoError(t, svc.Delete(ctx, f.instructorActor(), f.items[1].ID))

	active, err := svc.List(ctx, f.instructorActor(), f.question.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 2)

	all, err := svc.List(ctx, f.taActor(), f.question.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)

	stored, err := r.grades.Get(ctx, f.submission.ID, f.question.ID)
	require.NoError(t, err)
	require.Equal(t, f.itemIDs(1), stored.SelectedItemIDs())

	items, err := r.rubricItems.ListByQuestion(ctx, f.question.ID, true)
	require.NoError(t, err)
	_, err = grading.ValidateSelection(f.question, items, f.itemIDs(1))
	require.ErrorIs(t, err, grading.ErrInvalidSelection)

	require.Equal(t, []string{ActionRubricDeactivated}, activity.actions())
}

func TestRubricServiceUpdate(t *testing.T) {
	svc, f, _, _, _ := setupRubricService(t)

	label := "Small slip"
	delta := -2.0
	updated, err := svc.Update(context.Background(), f.instructorActor(), f.items[1].ID, dto.RubricItemUpdateRequest{Label: &label, DeltaPoints: &delta})
	require.NoError(t, err)
	require.Equal(t, "Small slip", updated.Label)
	require.Equal(t, -2.0, updated.DeltaPoints)
}

func TestRubricServiceDeltaChangeRecomputesGrades(t *testing.T) {
	svc, f, r, _, stats := setupRubricService(t)
	ctx := context.Background()

	grade, _, err := r.grades.GetOrCreate(ctx, f.submission.ID, f.question)
	require.NoError(t, err)
	grade.TotalPoints = grading.ComputeTotal(f.question.MaxPoints, f.items[1:2])
	require.NoError(t, r.grades.UpdateSelection(ctx, &grade, f.items[1:2], 0))

	label := "Minor error"
	_, err = svc.Update(ctx, f.instructorActor(), f.items[1].ID, dto.RubricItemUpdateRequest{Label: &label})
	require.NoError(t, err)
	require.Empty(t, stats.assignments)

	delta := -7.5
	_, err = svc.Update(ctx, f.instructorActor(), f.items[1].ID, dto.RubricItemUpdateRequest{DeltaPoints: &delta})
	require.NoError(t, err)

	stored, err := r.grades.Get(ctx, f.submission.ID, f.question.ID)
	require.NoError(t, err)
	require.Equal(t, 12.5, dto.Points(stored.TotalPoints))
	require.Equal(t, f.itemIDs(1), stored.SelectedItemIDs())
	require.Equal(t, []uint{f.assignment.ID}, stats.assignments)
}

func TestRubricServiceRejectsOversizedDelta(t *testing.T) {
	svc, f, _, _, _ := setupRubricService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, f.instructorActor(), f.question.ID, dto.RubricItemCreateRequest{Label: "Huge", DeltaPoints: -12000})
	require.ErrorIs(t, err, grading.ErrInvalidRange)

	delta := 10000.0
	_, err = svc.Update(ctx, f.instructorActor(), f.items[0].ID, dto.RubricItemUpdateRequest{DeltaPoints: &delta})
	require.ErrorIs(t, err, grading.ErrInvalidRange)

	_, err = svc.Replace(ctx, f.instructorActor(), f.question.ID, []dto.RubricItemCreateRequest{
		{Label: "Fine", DeltaPoints: -1},
		{Label: "Huge", DeltaPoints: -10000},
	})
	require.ErrorIs(t, err, grading.ErrInvalidRange)

	active, err := svc.List(ctx, f.instructorActor(), f.question.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 3)
}

func TestRubricServiceReplaceKeepsHistory(t *testing.T) {
	svc, f, _, _, _ := setupRubricService(t)
	ctx := context.Background()

	replaced, err := svc.Replace(ctx, f.instructorActor(), f.question.ID, []dto.RubricItemCreateRequest{
		{Label: "Full marks", DeltaPoints: 0, IsPositive: true},
		{Label: "Half", DeltaPoints: -10},
	})
	require.NoError(t, err)
	require.Len(t, replaced, 2)

	active, err := svc.List(ctx, f.instructorActor(), f.question.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 2)

	all, err := svc.List(ctx, f.instructorActor(), f.question.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestRubricServiceStudentsCannotEdit(t *testing.T) {
	svc, f, _, _, _ := setupRubricService(t)

	_, err := svc.List(context.Background(), f.studentActor(), f.question.ID, false)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), f.studentActor(), f.question.ID, dto.RubricItemCreateRequest{Label: "x"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(context.Background(), f.instructorActor(), 9999, dto.RubricItemUpdateRequest{})
	require.ErrorIs(t, err, ErrRubricItemNotFound)
}
