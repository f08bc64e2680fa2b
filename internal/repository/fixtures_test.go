package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/bargeh-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type gradingFixture struct {
	instructor models.User
	student    models.User
	course     models.Course
	assignment models.Assignment
	question   models.Question
	items      []models.RubricItem
	submission models.Submission
}

// seedGrading creates a course with one 20 point question, three rubric items
// (0, -5, -20) and one submission.
func seedGrading(t *testing.T, db *gorm.DB) gradingFixture {
	t.Helper()

	f := gradingFixture{
		instructor: models.User{Email: uuid.NewString() + "@staff.test", Name: "Prof", IsInstructor: true},
		student:    models.User{Email: uuid.NewString() + "@student.test", Name: "Sam"},
	}
	require.NoError(t, db.Create(&f.instructor).Error)
	require.NoError(t, db.Create(&f.student).Error)

	f.course = models.Course{Title: "Algorithms", Code: "CS101", InviteCode: uuid.NewString()[:8], Term: models.TermFall, Year: 2026, OwnerID: &f.instructor.ID}
	require.NoError(t, db.Omit("Owner").Create(&f.course).Error)

	f.assignment = models.Assignment{CourseID: f.course.ID, Title: "HW1", Type: models.AssignmentTypeHomework, CreatedByID: f.instructor.ID}
	require.NoError(t, db.Omit("Course").Create(&f.assignment).Error)

	f.question = models.Question{AssignmentID: f.assignment.ID, Number: 1, Title: "Q1", MaxPoints: decimal.NewFromInt(20)}
	require.NoError(t, db.Omit("Assignment").Create(&f.question).Error)

	f.items = []models.RubricItem{
		{QuestionID: f.question.ID, Label: "Correct", DeltaPoints: decimal.Zero, OrderIndex: 0, IsPositive: true, IsActive: true},
		{QuestionID: f.question.ID, Label: "Minor error", DeltaPoints: decimal.NewFromInt(-5), OrderIndex: 1, IsActive: true},
		{QuestionID: f.question.ID, Label: "Missing", DeltaPoints: decimal.NewFromInt(-20), OrderIndex: 2, IsActive: true},
	}
	require.NoError(t, db.Omit("Question").Create(&f.items).Error)

	f.submission = models.Submission{AssignmentID: f.assignment.ID, StudentID: &f.student.ID, FileURL: "/files/hw1.pdf", NumPages: 3}
	require.NoError(t, NewSubmissionRepository(db).Create(context.Background(), &f.submission))

	return f
}
