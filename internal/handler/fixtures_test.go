package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/bargeh-api/internal/config"
	"github.com/noah-isme/bargeh-api/internal/handler"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
	"github.com/noah-isme/bargeh-api/internal/router"
	"github.com/noah-isme/bargeh-api/internal/service"
)

const (
	testJWTSecret = "handler-test-secret"
	samplePDF     = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"
)

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
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

// seedData is a course with one instructor and one enrolled student, a
// published 10 point assignment question with rubric items worth -2 and -10,
// and a two page submission of the student.
type seedData struct {
	instructor models.User
	student    models.User
	outsider   models.User
	course     models.Course
	assignment models.Assignment
	question   models.Question
	items      []models.RubricItem
	submission models.Submission
}

type testServer struct {
	app  *fiber.App
	db   *gorm.DB
	bus  service.GradeEventBus
	seed seedData
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	log := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	storage := &memoryStorage{files: map[string][]byte{}}
	bus := service.NewGradeEventBus(nil, nil, "", log)

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	questions := repository.NewQuestionRepository(db)
	rubricItems := repository.NewRubricItemRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	grades := repository.NewSubmissionGradeRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), courses, log)
	stats := service.NewGradingStatsService(service.GradingStatsDeps{
		Grades:      grades,
		Submissions: submissions,
		Questions:   questions,
		Assignments: assignments,
		Courses:     courses,
	}, log)
	gradingService := service.NewGradingService(service.GradingDeps{
		Grades:      grades,
		Submissions: submissions,
		Questions:   questions,
		RubricItems: rubricItems,
		Assignments: assignments,
		Courses:     courses,
		Activity:    activity,
		Events:      bus,
		Stats:       stats,
	}, validate, log)
	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		Submissions: submissions,
		Questions:   questions,
		Assignments: assignments,
		Courses:     courses,
		Users:       users,
		Storage:     storage,
		MaxUploadMB: 1,
		Stats:       stats,
		Activity:    activity,
	}, validate, log)
	pageMaps, err := service.NewPageMapService(submissions, questions, assignments, courses, log)
	require.NoError(t, err)

	app := fiber.New()
	middleware.Register(app, middleware.Config{})
	router.Register(app, config.Config{AppName: "Bargeh Test", AppEnv: "test"}, router.Dependencies{
		UserHandler:   handler.NewUserHandler(service.NewUserService(users, validate, log), log),
		CourseHandler: handler.NewCourseHandler(service.NewCourseService(courses, users, activity, validate, log), activity, log),
		AssignmentHandler: handler.NewAssignmentHandler(
			service.NewAssignmentService(assignments, courses, storage, 1, validate, log), log),
		QuestionHandler: handler.NewQuestionHandler(
			service.NewQuestionService(service.QuestionDeps{
				Questions: questions, Assignments: assignments, Courses: courses,
				Grades: grades, Activity: activity, Stats: stats,
			}, validate, log),
			service.NewRubricService(service.RubricDeps{
				RubricItems: rubricItems, Questions: questions, Assignments: assignments, Courses: courses,
				Grades: grades, Activity: activity, Stats: stats,
			}, validate, log),
			log),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, pageMaps, log),
		GradingHandler:     handler.NewGradingHandler(gradingService, stats, log),
		GradingFeedHandler: handler.NewGradingFeedHandler(gradingService, bus, log),
		JWTMiddleware:      middleware.JWTProtected(testJWTSecret),
		ExposeMetrics:      true,
	})

	return testServer{app: app, db: db, bus: bus, seed: seed(t, db)}
}

func seed(t *testing.T, db *gorm.DB) seedData {
	t.Helper()

	s := seedData{
		instructor: models.User{Email: "prof@uni.test", Name: "Prof Ada", IsInstructor: true},
		student:    models.User{Email: "sam@uni.test", Name: "Sam"},
		outsider:   models.User{Email: "eve@uni.test", Name: "Eve"},
	}
	for _, user := range []*models.User{&s.instructor, &s.student, &s.outsider} {
		require.NoError(t, db.Create(user).Error)
	}

	s.course = models.Course{Title: "Algorithms", Code: "CS101", InviteCode: "JOINCS01", Term: models.TermFall, Year: 2026, OwnerID: &s.instructor.ID}
	require.NoError(t, db.Omit("Owner").Create(&s.course).Error)
	memberships := []models.CourseMembership{
		{UserID: s.instructor.ID, CourseID: s.course.ID, Role: models.MembershipInstructor},
		{UserID: s.student.ID, CourseID: s.course.ID, Role: models.MembershipStudent},
	}
	require.NoError(t, db.Omit("User", "Course").Create(&memberships).Error)

	s.assignment = models.Assignment{
		CourseID:        s.course.ID,
		Title:           "HW1",
		Type:            models.AssignmentTypeHomework,
		IsPublished:     true,
		UploadByStudent: true,
		TotalPoints:     decimal.NewFromInt(10),
		CreatedByID:     s.instructor.ID,
	}
	require.NoError(t, db.Omit("Course").Create(&s.assignment).Error)

	s.question = models.Question{AssignmentID: s.assignment.ID, Number: 1, Title: "Proof", MaxPoints: decimal.NewFromInt(10)}
	require.NoError(t, db.Omit("Assignment").Create(&s.question).Error)

	s.items = []models.RubricItem{
		{QuestionID: s.question.ID, Label: "Minor slip", DeltaPoints: decimal.NewFromInt(-2), OrderIndex: 0, IsActive: true},
		{QuestionID: s.question.ID, Label: "No answer", DeltaPoints: decimal.NewFromInt(-10), OrderIndex: 1, IsActive: true},
	}
	require.NoError(t, db.Omit("Question").Create(&s.items).Error)

	s.submission = models.Submission{AssignmentID: s.assignment.ID, StudentID: &s.student.ID, UploadedByID: &s.instructor.ID, FileURL: "https://files.test/sam.pdf", NumPages: 2}
	require.NoError(t, db.Omit("Assignment", "Student", "UploadedBy", "PageMap").Create(&s.submission).Error)

	return s
}

func signToken(t *testing.T, user models.User) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": user.Role(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func id(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}

// do sends a JSON request as the given user; a zero user sends no token.
func (s testServer) do(t *testing.T, method, path string, user models.User, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user.ID != 0 {
		req.Header.Set("Authorization", "Bearer "+signToken(t, user))
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (s testServer) upload(t *testing.T, method, path string, user models.User, field, filename, content string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signToken(t, user))

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var payload envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

// startServer serves the app on a random local port for websocket tests.
func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	t.Cleanup(func() {
		_ = app.Shutdown()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return listener.Addr().String()
}
