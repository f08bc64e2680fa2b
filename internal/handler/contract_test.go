package handler_test

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bargeh-api/internal/dto"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "schemas", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func requireContract(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	var payload interface{}
	require.NoError(t, json.Unmarshal(readBody(t, resp), &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestGradeDetailContract(t *testing.T) {
	s := newTestServer(t)
	schema := compileSchema(t, "grade_detail.schema.json")
	gradePath := "/api/v1/submissions/" + id(s.seed.submission.ID) + "/questions/" + id(s.seed.question.ID) + "/grade"

	resp := s.do(t, http.MethodGet, gradePath, s.seed.instructor, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	requireContract(t, schema, resp)

	resp = s.do(t, http.MethodPut, gradePath, s.seed.instructor, dto.GradeUpdateRequest{SelectedItemIDs: []uint{s.seed.items[0].ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(t, http.MethodGet, gradePath, s.seed.instructor, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	requireContract(t, schema, resp)
}

func TestAssignmentStatisticsContract(t *testing.T) {
	s := newTestServer(t)
	schema := compileSchema(t, "assignment_statistics.schema.json")
	path := "/api/v1/assignments/" + id(s.seed.assignment.ID) + "/statistics"

	resp := s.do(t, http.MethodGet, path, s.seed.instructor, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	requireContract(t, schema, resp)
}

func TestErrorContract(t *testing.T) {
	s := newTestServer(t)
	schema := compileSchema(t, "error.schema.json")

	resp := s.do(t, http.MethodGet, "/api/v1/assignments/"+id(s.seed.assignment.ID)+"/statistics", s.seed.student, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	requireContract(t, schema, resp)

	resp = s.do(t, http.MethodPost, "/api/v1/courses", s.seed.instructor, dto.CourseCreateRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	requireContract(t, schema, resp)
}
