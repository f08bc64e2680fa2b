package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type repos struct {
	users       repository.UserRepository
	courses     repository.CourseRepository
	assignments repository.AssignmentRepository
	questions   repository.QuestionRepository
	rubricItems repository.RubricItemRepository
	submissions repository.SubmissionRepository
	grades      repository.SubmissionGradeRepository
	activity    repository.ActivityLogRepository
}

func newRepos(db *gorm.DB) repos {
	return repos{
		users:       repository.NewUserRepository(db),
		courses:     repository.NewCourseRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		questions:   repository.NewQuestionRepository(db),
		rubricItems: repository.NewRubricItemRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		grades:      repository.NewSubmissionGradeRepository(db),
		activity:    repository.NewActivityLogRepository(db),
	}
}

type courseFixture struct {
	instructor  models.User
	ta          models.User
	student     models.User
	other       models.User
	outsider    models.User
	course      models.Course
	assignment  models.Assignment
	question    models.Question
	items       []models.RubricItem
	submission  models.Submission
	submission2 models.Submission
}

func (f courseFixture) instructorActor() Actor {
	return Actor{ID: f.instructor.ID, Role: models.RoleInstructor}
}

func (f courseFixture) taActor() Actor {
	return Actor{ID: f.ta.ID, Role: models.RoleStudent}
}

func (f courseFixture) studentActor() Actor {
	return Actor{ID: f.student.ID, Role: models.RoleStudent}
}

func (f courseFixture) outsiderActor() Actor {
	return Actor{ID: f.outsider.ID, Role: models.RoleInstructor}
}

// seedCourse creates a course with an instructor, a TA and two enrolled students,
// a published assignment with one 20 point question, rubric items worth 0, -5
// and -20, and one submission per student.
func seedCourse(t *testing.T, db *gorm.DB) courseFixture {
	t.Helper()

	f := courseFixture{
		instructor: models.User{Email: "prof-" + uuid.NewString()[:8] + "@uni.test", Name: "Prof Ada", IsInstructor: true},
		ta:         models.User{Email: "ta-" + uuid.NewString()[:8] + "@uni.test", Name: "Tess"},
		student:    models.User{Email: "sam-" + uuid.NewString()[:8] + "@uni.test", Name: "Sam"},
		other:      models.User{Email: "kim-" + uuid.NewString()[:8] + "@uni.test", Name: "Kim"},
		outsider:   models.User{Email: "out-" + uuid.NewString()[:8] + "@uni.test", Name: "Otto", IsInstructor: true},
	}
	for _, user := range []*models.User{&f.instructor, &f.ta, &f.student, &f.other, &f.outsider} {
		require.NoError(t, db.Create(user).Error)
	}

	f.course = models.Course{Title: "Algorithms", Code: "CS101", InviteCode: "ABCD1234", Term: models.TermFall, Year: 2026, OwnerID: &f.instructor.ID}
	require.NoError(t, db.Omit("Owner").Create(&f.course).Error)

	memberships := []models.CourseMembership{
		{UserID: f.instructor.ID, CourseID: f.course.ID, Role: models.MembershipInstructor},
		{UserID: f.ta.ID, CourseID: f.course.ID, Role: models.MembershipTA},
		{UserID: f.student.ID, CourseID: f.course.ID, Role: models.MembershipStudent},
		{UserID: f.other.ID, CourseID: f.course.ID, Role: models.MembershipStudent},
	}
	require.NoError(t, db.Omit("User", "Course").Create(&memberships).Error)

	f.assignment = models.Assignment{
		CourseID:        f.course.ID,
		Title:           "HW1",
		Type:            models.AssignmentTypeHomework,
		IsPublished:     true,
		UploadByStudent: true,
		TotalPoints:     decimal.NewFromInt(20),
		CreatedByID:     f.instructor.ID,
	}
	require.NoError(t, db.Omit("Course").Create(&f.assignment).Error)

	f.question = models.Question{AssignmentID: f.assignment.ID, Number: 1, Title: "Q1", MaxPoints: decimal.NewFromInt(20)}
	require.NoError(t, db.Omit("Assignment").Create(&f.question).Error)

	f.items = []models.RubricItem{
		{QuestionID: f.question.ID, Label: "Correct", DeltaPoints: decimal.Zero, OrderIndex: 0, IsPositive: true, IsActive: true},
		{QuestionID: f.question.ID, Label: "Minor error", DeltaPoints: decimal.NewFromInt(-5), OrderIndex: 1, IsActive: true},
		{QuestionID: f.question.ID, Label: "Missing", DeltaPoints: decimal.NewFromInt(-20), OrderIndex: 2, IsActive: true},
	}
	require.NoError(t, db.Omit("Question").Create(&f.items).Error)

	submissions := repository.NewSubmissionRepository(db)
	f.submission = models.Submission{AssignmentID: f.assignment.ID, StudentID: &f.student.ID, UploadedByID: &f.student.ID, FileURL: "https://files.test/sam.pdf", NumPages: 3}
	require.NoError(t, submissions.Create(context.Background(), &f.submission))
	f.submission2 = models.Submission{AssignmentID: f.assignment.ID, StudentID: &f.other.ID, UploadedByID: &f.instructor.ID, FileURL: "https://files.test/kim.pdf", NumPages: 2}
	require.NoError(t, submissions.Create(context.Background(), &f.submission2))

	return f
}

func (f courseFixture) itemIDs(indexes ...int) []uint {
	ids := make([]uint, 0, len(indexes))
	for _, i := range indexes {
		ids = append(ids, f.items[i].ID)
	}
	return ids
}

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return "https://files.test/" + name, nil
}

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type stubActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivity) Record(_ context.Context, entry ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubActivity) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type stubInvalidator struct {
	mu          sync.Mutex
	assignments []uint
}

func (s *stubInvalidator) Invalidate(_ context.Context, assignmentID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, assignmentID)
}

// multipartFile builds a file header the way fiber hands it to handlers.
func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}
