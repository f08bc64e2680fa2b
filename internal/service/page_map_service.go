package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/bargeh-api/internal/dto"
	"github.com/noah-isme/bargeh-api/internal/grading"
	"github.com/noah-isme/bargeh-api/internal/models"
	"github.com/noah-isme/bargeh-api/internal/repository"
)

const pageMapSchemaURL = "bargeh://schemas/page_map.json"

const pageMapSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "propertyNames": {"pattern": "^[1-9][0-9]*$"},
  "additionalProperties": {
    "type": "array",
    "items": {"type": "integer", "minimum": 1},
    "uniqueItems": true
  }
}`

// PageMapService reads and replaces the question-to-page mapping of submissions.
type PageMapService interface {
	Get(ctx context.Context, actor Actor, submissionID uint) (dto.PageMapResponse, error)
	Update(ctx context.Context, actor Actor, submissionID uint, payload dto.PageMapRequest) (dto.PageMapResponse, error)
}

type pageMapService struct {
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	access      accessControl
	schema      *jsonschema.Schema
	logger      zerolog.Logger
}

// NewPageMapService builds the page map service.
func NewPageMapService(submissions repository.SubmissionRepository, questions repository.QuestionRepository, assignments repository.AssignmentRepository, courses repository.CourseRepository, logger zerolog.Logger) (PageMapService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(pageMapSchemaURL, strings.NewReader(pageMapSchema)); err != nil {
		return nil, fmt.Errorf("load page map schema: %w", err)
	}
	schema, err := compiler.Compile(pageMapSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile page map schema: %w", err)
	}

	return &pageMapService{
		submissions: submissions,
		questions:   questions,
		access:      accessControl{courses: courses, assignments: assignments},
		schema:      schema,
		logger:      logger.With().Str("component", "page_map_service").Logger(),
	}, nil
}

func (s *pageMapService) Get(ctx context.Context, actor Actor, submissionID uint) (dto.PageMapResponse, error) {
	submission, _, err := loadVisibleSubmission(ctx, s.access, s.submissions, actor, submissionID)
	if err != nil {
		return dto.PageMapResponse{}, err
	}
	questions, err := s.questions.ListByAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return dto.PageMapResponse{}, err
	}
	return newPageMapResponse(submission, questions), nil
}

func (s *pageMapService) Update(ctx context.Context, actor Actor, submissionID uint, payload dto.PageMapRequest) (dto.PageMapResponse, error) {
	submission, _, err := loadVisibleSubmission(ctx, s.access, s.submissions, actor, submissionID)
	if err != nil {
		return dto.PageMapResponse{}, err
	}

	mapping := models.PageMap(payload.PageMap)
	if mapping == nil {
		mapping = models.PageMap{}
	}
	if err := s.validateDocument(mapping); err != nil {
		return dto.PageMapResponse{}, err
	}

	questions, err := s.questions.ListByAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return dto.PageMapResponse{}, err
	}
	if err := validatePageMap(mapping, questions, submission.NumPages); err != nil {
		return dto.PageMapResponse{}, err
	}

	for key := range mapping {
		sort.Ints(mapping[key])
	}

	pageMap, err := s.submissions.SavePageMap(ctx, submission.ID, mapping)
	if err != nil {
		return dto.PageMapResponse{}, err
	}
	submission.PageMap = &pageMap

	response := newPageMapResponse(submission, questions)
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("mapping_status", response.MappingStatus).
		Msg("page map updated")
	return response, nil
}

func (s *pageMapService) validateDocument(mapping models.PageMap) error {
	raw, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return err
	}
	if err := s.schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPageMap, err)
	}
	return nil
}

// validatePageMap checks every key names a question of the assignment and every
// page lies within 1..numPages.
func validatePageMap(mapping models.PageMap, questions []models.Question, numPages int) error {
	known := make(map[string]struct{}, len(questions))
	for _, question := range questions {
		known[strconv.FormatUint(uint64(question.ID), 10)] = struct{}{}
	}

	for key, pages := range mapping {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("%w: question %s is not part of the assignment", ErrInvalidPageMap, key)
		}
		for _, page := range pages {
			if page < 1 || page > numPages {
				return fmt.Errorf("page %d of question %s outside 1..%d: %w", page, key, numPages, grading.ErrInvalidRange)
			}
		}
	}
	return nil
}

func newPageMapResponse(submission models.Submission, questions []models.Question) dto.PageMapResponse {
	response := dto.PageMapResponse{
		SubmissionID:  submission.ID,
		NumPages:      submission.NumPages,
		PageMap:       map[string][]int{},
		MappingStatus: models.MappingStatus(submission.PageMap, questions),
	}
	if submission.PageMap != nil {
		for key, pages := range submission.PageMap.PageMap.Data() {
			response.PageMap[key] = pages
		}
	}
	return response
}
