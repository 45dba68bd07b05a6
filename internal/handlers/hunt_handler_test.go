package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

type stubHuntService struct {
	startedDefinition string
	startedCase       string
	startErr          error
	cancelled         []string
	execution         *models.HuntExecution
}

func (s *stubHuntService) StartExecution(ctx context.Context, definitionID, caseID, userID string, initialParams map[string]interface{}) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	s.startedDefinition = definitionID
	s.startedCase = caseID
	return "exec_test", nil
}

func (s *stubHuntService) GetExecution(ctx context.Context, executionID string) (*models.HuntExecution, error) {
	if s.execution == nil || s.execution.ID != executionID {
		return nil, fmt.Errorf("execution not found: %s", executionID)
	}
	return s.execution, nil
}

func (s *stubHuntService) ListExecutions(ctx context.Context, opts *interfaces.ExecutionListOptions) ([]*models.HuntExecution, error) {
	if s.execution == nil {
		return nil, nil
	}
	return []*models.HuntExecution{s.execution}, nil
}

func (s *stubHuntService) RequestCancel(ctx context.Context, executionID string) error {
	if s.execution == nil || s.execution.ID != executionID {
		return fmt.Errorf("execution not found: %s", executionID)
	}
	s.cancelled = append(s.cancelled, executionID)
	return nil
}

func testExecutionRecord(id string) *models.HuntExecution {
	def := &models.HuntDefinition{
		ID:    "def-1",
		Name:  "Def",
		Steps: []models.StepDefinition{{ID: "s", Plugin: "p"}},
	}
	return models.NewHuntExecution(id, def, "case-1", "analyst", nil)
}

func TestStartExecutionHandler(t *testing.T) {
	stub := &stubHuntService{}
	h := NewHuntHandler(stub, common.GetLogger())

	body := `{"definition_id":"domain-recon","case_id":"case-1","initial_params":{"domain":"example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/executions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.StartExecutionHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "domain-recon", stub.startedDefinition)
	assert.Equal(t, "case-1", stub.startedCase)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "exec_test", resp["execution_id"])
}

func TestStartExecutionHandlerValidation(t *testing.T) {
	h := NewHuntHandler(&stubHuntService{}, common.GetLogger())

	tests := []struct {
		name string
		body string
	}{
		{"missing definition", `{"case_id":"case-1"}`},
		{"missing case", `{"definition_id":"domain-recon"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/executions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.StartExecutionHandler(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/executions", nil)
		rec := httptest.NewRecorder()
		h.StartExecutionHandler(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestGetExecutionRoute(t *testing.T) {
	stub := &stubHuntService{execution: testExecutionRecord("exec_1")}
	h := NewHuntHandler(stub, common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/executions/exec_1", nil)
	rec := httptest.NewRecorder()
	h.ExecutionRoutesHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var exec models.HuntExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exec))
	assert.Equal(t, "exec_1", exec.ID)
	assert.Len(t, exec.Steps, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/executions/missing", nil)
	rec = httptest.NewRecorder()
	h.ExecutionRoutesHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelExecutionRoute(t *testing.T) {
	stub := &stubHuntService{execution: testExecutionRecord("exec_1")}
	h := NewHuntHandler(stub, common.GetLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/executions/exec_1/cancel", nil)
	rec := httptest.NewRecorder()
	h.ExecutionRoutesHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"exec_1"}, stub.cancelled)

	// Cancel requires POST.
	req = httptest.NewRequest(http.MethodGet, "/api/executions/exec_1/cancel", nil)
	rec = httptest.NewRecorder()
	h.ExecutionRoutesHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListExecutionsHandler(t *testing.T) {
	stub := &stubHuntService{execution: testExecutionRecord("exec_1")}
	h := NewHuntHandler(stub, common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/executions?status=running&limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListExecutionsHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Executions []*models.HuntExecution `json:"executions"`
		Count      int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}
