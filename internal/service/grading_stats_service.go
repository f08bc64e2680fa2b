package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/observability"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

const statisticsCacheKeyPrefix = "bargeh:stats:assignment:"

// GradingStatsService reports grading progress, navigation and grade statistics.
type GradingStatsService interface {
	StatisticsInvalidator
	QuestionProgress(ctx context.Context, actor Actor, questionID uint) (dto.QuestionProgressResponse, error)
	QuestionSubmissions(ctx context.Context, actor Actor, questionID uint) ([]dto.QuestionSubmissionRow, error)
	Navigation(ctx context.Context, actor Actor, submissionID, questionID uint) (dto.GradingNavigationResponse, error)
	AssignmentStatistics(ctx context.Context, actor Actor, assignmentID uint) (dto.AssignmentStatisticsResponse, error)
	StudentGrades(ctx context.Context, actor Actor, assignmentID uint) ([]dto.StudentGradeResponse, error)
}

// GradingStatsDeps groups the collaborators of the statistics service.
type GradingStatsDeps struct {
	Grades      repository.SubmissionGradeRepository
	Submissions repository.SubmissionRepository
	Questions   repository.QuestionRepository
	Assignments repository.AssignmentRepository
	Courses     repository.CourseRepository
	Cache       *redis.Client
	CacheTTL    time.Duration
}

type gradingStatsService struct {
	grades      repository.SubmissionGradeRepository
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	access      accessControl
	cache       *redis.Client
	cacheTTL    time.Duration
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewGradingStatsService builds the statistics service. A nil cache disables caching.
func NewGradingStatsService(deps GradingStatsDeps, logger zerolog.Logger) GradingStatsService {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &gradingStatsService{
		grades:      deps.Grades,
		submissions: deps.Submissions,
		questions:   deps.Questions,
		access:      accessControl{courses: deps.Courses, assignments: deps.Assignments},
		cache:       deps.Cache,
		cacheTTL:    ttl,
		tracer:      otel.Tracer("github.com/noah-isme/bargeh-api/internal/service/grading_stats"),
		logger:      logger.With().Str("component", "grading_stats_service").Logger(),
	}
}

func (s *gradingStatsService) QuestionProgress(ctx context.Context, actor Actor, questionID uint) (dto.QuestionProgressResponse, error) {
	question, _, err := s.staffQuestion(ctx, actor, questionID)
	if err != nil {
		return dto.QuestionProgressResponse{}, err
	}

	total, graded, err := s.questionCounts(ctx, question)
	if err != nil {
		return dto.QuestionProgressResponse{}, err
	}

	return dto.QuestionProgressResponse{
		QuestionID:         question.ID,
		QuestionTitle:      question.Title,
		TotalSubmissions:   total,
		GradedSubmissions:  graded,
		ProgressPercentage: grading.GradingProgress(total, 1, graded),
	}, nil
}

func (s *gradingStatsService) QuestionSubmissions(ctx context.Context, actor Actor, questionID uint) ([]dto.QuestionSubmissionRow, error) {
	question, assignment, err := s.staffQuestion(ctx, actor, questionID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByAssignment(ctx, question.AssignmentID)
	if err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByQuestion(ctx, question.ID)
	if err != nil {
		return nil, err
	}

	bySubmission := make(map[uint]models.SubmissionGrade, len(grades))
	for _, grade := range grades {
		bySubmission[grade.SubmissionID] = grade
	}

	rows := make([]dto.QuestionSubmissionRow, 0, len(submissions))
	for i, submission := range submissions {
		row := dto.QuestionSubmissionRow{
			RowNumber:    i + 1,
			SubmissionID: submission.ID,
			StudentID:    submission.StudentID,
			StudentName:  graderVisibleName(assignment, submission, i+1),
		}
		if assignment.AnonymizedGrading {
			row.StudentID = nil
		}
		if grade, ok := bySubmission[submission.ID]; ok {
			score := dto.Points(grade.TotalPoints)
			row.Score = &score
			row.IsGraded = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *gradingStatsService) Navigation(ctx context.Context, actor Actor, submissionID, questionID uint) (dto.GradingNavigationResponse, error) {
	question, assignment, err := s.staffQuestion(ctx, actor, questionID)
	if err != nil {
		return dto.GradingNavigationResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradingNavigationResponse{}, ErrSubmissionNotFound
		}
		return dto.GradingNavigationResponse{}, err
	}
	if submission.AssignmentID != question.AssignmentID {
		return dto.GradingNavigationResponse{}, ErrSubmissionNotFound
	}

	ids, err := s.submissions.ListIDsByAssignment(ctx, question.AssignmentID)
	if err != nil {
		return dto.GradingNavigationResponse{}, err
	}

	position := 0
	for i, id := range ids {
		if id == submission.ID {
			position = i
			break
		}
	}

	graded, err := s.grades.CountByQuestion(ctx, question.ID)
	if err != nil {
		return dto.GradingNavigationResponse{}, err
	}

	pageNumber := 1
	if submission.PageMap != nil {
		if pages := submission.PageMap.PageMap.Data().PagesFor(question.ID); len(pages) > 0 {
			pageNumber = pages[0]
		}
	}

	response := dto.GradingNavigationResponse{
		SubmissionID:       submission.ID,
		StudentName:        graderVisibleName(assignment, submission, position+1),
		QuestionID:         question.ID,
		QuestionTitle:      question.Title,
		QuestionPoints:     dto.Points(question.MaxPoints),
		CurrentIndex:       position + 1,
		TotalSubmissions:   len(ids),
		GradedSubmissions:  int(graded),
		ProgressPercentage: grading.GradingProgress(len(ids), 1, int(graded)),
		PageNumber:         pageNumber,
		FileURL:            submission.FileURL,
	}
	if position > 0 {
		previous := ids[position-1]
		response.PreviousSubmissionID = &previous
	}
	if position+1 < len(ids) {
		next := ids[position+1]
		response.NextSubmissionID = &next
	}
	return response, nil
}

func (s *gradingStatsService) AssignmentStatistics(ctx context.Context, actor Actor, assignmentID uint) (dto.AssignmentStatisticsResponse, error) {
	cacheKey := statisticsCacheKey(assignmentID)
	ctx, span := s.tracer.Start(ctx, "grading.statistics")
	span.SetAttributes(attribute.String("statistics.cache_key", cacheKey))
	defer span.End()

	if _, err := s.access.staffAssignment(ctx, actor, assignmentID); err != nil {
		return dto.AssignmentStatisticsResponse{}, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.AssignmentStatisticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.StatisticsCache().WithLabelValues("hit").Inc()
				span.SetAttributes(attribute.Bool("statistics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read statistics cache")
			span.RecordError(err)
		}
		observability.StatisticsCache().WithLabelValues("miss").Inc()
	}

	response, err := s.computeStatistics(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "statistics_failed")
		return dto.AssignmentStatisticsResponse{}, err
	}
	span.SetAttributes(attribute.Int("statistics.count", response.Count))

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store statistics cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}

func (s *gradingStatsService) computeStatistics(ctx context.Context, assignmentID uint) (dto.AssignmentStatisticsResponse, error) {
	grades, err := s.grades.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentStatisticsResponse{}, err
	}
	submissionCount, err := s.submissions.CountByAssignment(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentStatisticsResponse{}, err
	}
	questions, err := s.questions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentStatisticsResponse{}, err
	}

	totals := make([]decimal.Decimal, 0, len(grades))
	gradedSubmissions := make(map[uint]struct{})
	for _, grade := range grades {
		totals = append(totals, grade.TotalPoints)
		gradedSubmissions[grade.SubmissionID] = struct{}{}
	}

	response := dto.NewAssignmentStatisticsResponse(assignmentID, grading.SummaryStatistics(totals))
	response.TotalStudents = int(submissionCount)
	response.GradedStudents = len(gradedSubmissions)
	response.ProgressPercentage = grading.GradingProgress(int(submissionCount), len(questions), len(grades))
	return response, nil
}

// Invalidate drops the cached statistics of an assignment. Failures are only logged.
func (s *gradingStatsService) Invalidate(ctx context.Context, assignmentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statisticsCacheKey(assignmentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to invalidate statistics cache")
	}
}

func (s *gradingStatsService) StudentGrades(ctx context.Context, actor Actor, assignmentID uint) ([]dto.StudentGradeResponse, error) {
	assignment, membership, err := s.access.memberAssignment(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	var submissions []models.Submission
	if membership.Role == models.MembershipStudent {
		submissions, err = s.submissions.ListByStudent(ctx, assignmentID, actor.ID)
	} else {
		submissions, err = s.submissions.ListByAssignment(ctx, assignmentID)
	}
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	submissionIDs := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		submissionIDs = append(submissionIDs, submission.ID)
	}

	grades, err := s.grades.ListBySubmissions(ctx, submissionIDs)
	if err != nil {
		return nil, err
	}

	bySubmission := make(map[uint]map[uint]models.SubmissionGrade, len(submissions))
	for _, grade := range grades {
		if _, ok := bySubmission[grade.SubmissionID]; !ok {
			bySubmission[grade.SubmissionID] = make(map[uint]models.SubmissionGrade)
		}
		bySubmission[grade.SubmissionID][grade.QuestionID] = grade
	}

	results := make([]dto.StudentGradeResponse, 0, len(submissions))
	for _, submission := range submissions {
		recorded := bySubmission[submission.ID]
		total := decimal.Zero
		scores := make([]dto.QuestionScore, 0, len(questions))
		for _, question := range questions {
			line := dto.QuestionScore{
				QuestionID:    question.ID,
				QuestionTitle: question.Title,
				MaxPoints:     dto.Points(question.MaxPoints),
			}
			if grade, ok := recorded[question.ID]; ok {
				score := dto.Points(grade.TotalPoints)
				line.Score = &score
				line.IsGraded = true
				total = total.Add(grade.TotalPoints)
			}
			scores = append(scores, line)
		}

		results = append(results, dto.StudentGradeResponse{
			SubmissionID: submission.ID,
			AssignmentID: assignment.ID,
			StudentID:    submission.StudentID,
			StudentName:  submission.StudentName(),
			TotalScore:   dto.Points(total),
			MaxScore:     dto.Points(assignment.TotalPoints),
			IsGraded:     len(recorded) > 0,
			Questions:    scores,
		})
	}
	return results, nil
}

func (s *gradingStatsService) staffQuestion(ctx context.Context, actor Actor, questionID uint) (models.Question, models.Assignment, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Question{}, models.Assignment{}, ErrQuestionNotFound
		}
		return models.Question{}, models.Assignment{}, err
	}

	assignment, err := s.access.staffAssignment(ctx, actor, question.AssignmentID)
	if err != nil {
		return models.Question{}, models.Assignment{}, err
	}
	return question, assignment, nil
}

func (s *gradingStatsService) questionCounts(ctx context.Context, question models.Question) (int, int, error) {
	total, err := s.submissions.CountByAssignment(ctx, question.AssignmentID)
	if err != nil {
		return 0, 0, err
	}
	graded, err := s.grades.CountByQuestion(ctx, question.ID)
	if err != nil {
		return 0, 0, err
	}
	return int(total), int(graded), nil
}

func statisticsCacheKey(assignmentID uint) string {
	return fmt.Sprintf("%s%d", statisticsCacheKeyPrefix, assignmentID)
}

// graderVisibleName hides student identities when the assignment is graded anonymously.
func graderVisibleName(assignment models.Assignment, submission models.Submission, position int) string {
	if assignment.AnonymizedGrading {
		return fmt.Sprintf("Submission %d", position)
	}
	return submission.StudentName()
}
