package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
)

type gradingHarness struct {
	db       *gorm.DB
	fixture  courseFixture
	service  GradingService
	activity *stubActivity
	stats    *stubInvalidator
	bus      GradeEventBus
}

func setupGradingService(t *testing.T) gradingHarness {
	t.Helper()

	db := setupServiceDB(t)
	fixture := seedCourse(t, db)
	r := newRepos(db)
	activity := &stubActivity{}
	stats := &stubInvalidator{}
	bus := NewGradeEventBus(nil, nil, "", testLogger())

	svc := NewGradingService(GradingDeps{
		Grades:      r.grades,
		Submissions: r.submissions,
		Questions:   r.questions,
		RubricItems: r.rubricItems,
		Assignments: r.assignments,
		Courses:     r.courses,
		Activity:    activity,
		Events:      bus,
		Stats:       stats,
	}, testValidator(), testLogger())

	return gradingHarness{db: db, fixture: fixture, service: svc, activity: activity, stats: stats, bus: bus}
}

func TestGradingServiceGetGradeCreatesDefault(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	detail, err := h.service.GetGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID)
	require.NoError(t, err)
	require.True(t, detail.Created)
	require.Equal(t, 20.0, detail.Grade.TotalPoints)
	require.Equal(t, 20.0, detail.Grade.MaxPoints)
	require.Equal(t, 1, detail.Grade.Version)
	require.Empty(t, detail.Grade.SelectedItemIDs)
	require.Len(t, detail.RubricItems, 3)
	require.Equal(t, []uint{f.assignment.ID}, h.stats.assignments)

	again, err := h.service.GetGrade(ctx, f.taActor(), f.submission.ID, f.question.ID)
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, detail.Grade.ID, again.Grade.ID)
	require.Len(t, h.stats.assignments, 1)

	var count int64
	require.NoError(t, h.db.Model(&models.SubmissionGrade{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestGradingServiceUpdateGradeComputesTotal(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	events, cancel := h.bus.Subscribe(f.assignment.ID)
	defer cancel()

	grade, err := h.service.UpdateGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{
		SelectedItemIDs: f.itemIDs(1),
	})
	require.NoError(t, err)
	require.Equal(t, 15.0, grade.TotalPoints)
	require.Equal(t, 2, grade.Version)
	require.Equal(t, f.itemIDs(1), grade.SelectedItemIDs)
	require.NotNil(t, grade.GradedByID)
	require.Equal(t, f.instructor.ID, *grade.GradedByID)

	require.Equal(t, []string{ActionGradeUpdated}, h.activity.actions())
	require.Equal(t, []uint{f.assignment.ID}, h.stats.assignments)

	select {
	case event := <-events:
		require.Equal(t, "grade.updated", event.Type)
		require.Equal(t, f.submission.ID, event.SubmissionID)
		require.Equal(t, 15.0, event.TotalPoints)
		require.Equal(t, 2, event.Version)
	default:
		t.Fatal("expected a grade event")
	}
}

func TestGradingServiceUpdateGradeClampsAtZero(t *testing.T) {
	h := setupGradingService(t)
	f := h.fixture

	grade, err := h.service.UpdateGrade(context.Background(), f.instructorActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{
		SelectedItemIDs: f.itemIDs(1, 2),
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, grade.TotalPoints)
}

func TestGradingServiceClearingSelectionRestoresFullCredit(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	_, err := h.service.UpdateGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{SelectedItemIDs: f.itemIDs(2)})
	require.NoError(t, err)

	grade, err := h.service.UpdateGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{SelectedItemIDs: []uint{}})
	require.NoError(t, err)
	require.Equal(t, 20.0, grade.TotalPoints)
	require.Empty(t, grade.SelectedItemIDs)
	require.Equal(t, 3, grade.Version)
}

func TestGradingServiceRejectsInvalidSelection(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	foreign := models.Question{AssignmentID: f.assignment.ID, Number: 2, Title: "Q2", MaxPoints: f.question.MaxPoints}
	require.NoError(t, h.db.Omit("Assignment").Create(&foreign).Error)
	foreignItem := models.RubricItem{QuestionID: foreign.ID, Label: "Other", DeltaPoints: f.items[1].DeltaPoints, IsActive: true}
	require.NoError(t, h.db.Omit("Question").Create(&foreignItem).Error)

	inactive := f.items[1]
	require.NoError(t, h.db.Model(&models.RubricItem{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	cases := map[string][]uint{
		"unknown":   {9999},
		"foreign":   {foreignItem.ID},
		"inactive":  {inactive.ID},
		"duplicate": f.itemIDs(2, 2),
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.service.UpdateGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{SelectedItemIDs: ids})
			require.ErrorIs(t, err, grading.ErrInvalidSelection)
		})
	}

	require.Empty(t, h.activity.actions())
	var count int64
	require.NoError(t, h.db.Model(&models.SubmissionGrade{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGradingServiceVersionConflict(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	detail, err := h.service.GetGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID)
	require.NoError(t, err)

	version := detail.Grade.Version
	_, err = h.service.UpdateGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{SelectedItemIDs: f.itemIDs(1), ExpectedVersion: &version})
	require.NoError(t, err)

	_, err = h.service.UpdateGrade(ctx, f.taActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{SelectedItemIDs: f.itemIDs(2), ExpectedVersion: &version})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.ErrorIs(t, err, ErrConflict)

	current, err := h.service.GetGrade(ctx, f.instructorActor(), f.submission.ID, f.question.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, current.Grade.TotalPoints)
}

func TestGradingServiceAccessRules(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	_, err := h.service.GetGrade(ctx, f.studentActor(), f.submission.ID, f.question.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = h.service.UpdateGrade(ctx, f.outsiderActor(), f.submission.ID, f.question.ID, dto.GradeUpdateRequest{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = h.service.GetGrade(ctx, f.instructorActor(), 9999, f.question.ID)
	require.ErrorIs(t, err, grading.ErrNotFound)

	_, err = h.service.GetGrade(ctx, f.instructorActor(), f.submission.ID, 9999)
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestGradingServiceRejectsQuestionOfOtherAssignment(t *testing.T) {
	h := setupGradingService(t)
	f := h.fixture

	other := models.Assignment{CourseID: f.course.ID, Title: "HW2", Type: models.AssignmentTypeHomework, CreatedByID: f.instructor.ID}
	require.NoError(t, h.db.Omit("Course").Create(&other).Error)
	question := models.Question{AssignmentID: other.ID, Number: 1, Title: "Elsewhere", MaxPoints: f.question.MaxPoints}
	require.NoError(t, h.db.Omit("Assignment").Create(&question).Error)

	_, err := h.service.GetGrade(context.Background(), f.instructorActor(), f.submission.ID, question.ID)
	require.ErrorIs(t, err, grading.ErrNotFound)
}

func TestGradingServiceAuthorizeFeed(t *testing.T) {
	h := setupGradingService(t)
	ctx := context.Background()
	f := h.fixture

	require.NoError(t, h.service.AuthorizeFeed(ctx, f.instructorActor(), f.assignment.ID))
	require.NoError(t, h.service.AuthorizeFeed(ctx, f.taActor(), f.assignment.ID))
	require.ErrorIs(t, h.service.AuthorizeFeed(ctx, f.studentActor(), f.assignment.ID), ErrForbidden)
	require.ErrorIs(t, h.service.AuthorizeFeed(ctx, f.outsiderActor(), f.assignment.ID), ErrForbidden)
	require.ErrorIs(t, h.service.AuthorizeFeed(ctx, f.instructorActor(), 9999), grading.ErrNotFound)
}
