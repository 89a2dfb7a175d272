package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/api"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail/mocks"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type recordingAuditor struct {
	results []models.GuardrailResult
}

func (a *recordingAuditor) Record(ctx context.Context, source string, result models.GuardrailResult) error {
	a.results = append(a.results, result)
	return nil
}

func setupTestAPI(t *testing.T, guard guardrail.Guard, auditor api.Auditor) *restful.Container {
	t.Helper()
	container := restful.NewContainer()
	container.Filter(middleware.NewFilters(newTestLogger()).RecoverPanic)
	api.RegisterRoutes(container, api.NewHandler(guard, auditor, newTestLogger()))
	api.RegisterDocs(container)
	api.RegisterMetrics(container, prometheus.NewRegistry())
	return container
}

func doJSON(t *testing.T, container *restful.Container, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	container.ServeHTTP(recorder, req)
	return recorder
}

func TestAPI_Health(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockGuard(ctrl)
	guard.EXPECT().Rails().Return([]guardrail.RailInfo{{Name: "pii"}})

	container := setupTestAPI(t, guard, nil)
	recorder := doJSON(t, container, http.MethodGet, "/api/v1/health", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}

	var response api.HealthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Status != "ok" || response.Rails != 1 {
		t.Errorf("Unexpected health response %+v", response)
	}
}

func TestAPI_Guard(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockGuard(ctrl)
	auditor := &recordingAuditor{}

	request := models.GuardRequest{EventID: "evt-1", Prompt: "What is the capital of France?"}
	guard.EXPECT().
		ProcessRequest(gomock.Any(), request).
		Return(models.GuardrailResult{RequestID: "evt-1", Decision: models.DecisionAllowed, Text: "Paris."}, nil)

	container := setupTestAPI(t, guard, auditor)
	recorder := doJSON(t, container, http.MethodPost, "/api/v1/guard", request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}

	var result models.GuardrailResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if result.Decision != models.DecisionAllowed || result.Text != "Paris." {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(auditor.results) != 1 {
		t.Errorf("Expected one audit record, got %d", len(auditor.results))
	}
}

func TestAPI_Guard_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		guardErr   error
		wantStatus int
	}{
		{"invalid json", "{not json", nil, http.StatusBadRequest},
		{"empty prompt", models.GuardRequest{Prompt: "  "}, nil, http.StatusBadRequest},
		{"llm unavailable", models.GuardRequest{Prompt: "hi"}, fmt.Errorf("llm invocation failed: %w", llm.ErrLLMUnavailable), http.StatusBadGateway},
		{"llm timeout", models.GuardRequest{Prompt: "hi"}, fmt.Errorf("llm invocation failed: %w", llm.ErrLLMTimeout), http.StatusGatewayTimeout},
		{"unexpected", models.GuardRequest{Prompt: "hi"}, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			guard := mocks.NewMockGuard(ctrl)
			if tt.guardErr != nil {
				guard.EXPECT().
					ProcessRequest(gomock.Any(), gomock.Any()).
					Return(models.GuardrailResult{RequestID: "r-1", Decision: models.DecisionFailed}, tt.guardErr)
			}

			container := setupTestAPI(t, guard, nil)
			recorder := doJSON(t, container, http.MethodPost, "/api/v1/guard", tt.body)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d. Body: %s", tt.wantStatus, recorder.Code, recorder.Body.String())
			}

			var errResp middleware.ErrorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("Failed to parse error response: %v", err)
			}
			if errResp.Code != tt.wantStatus || errResp.Error == "" {
				t.Errorf("Unexpected error response %+v", errResp)
			}
		})
	}
}

func TestAPI_CheckEndpoints(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockGuard(ctrl)

	blocked := models.GuardrailResult{RequestID: "x", Decision: models.DecisionBlocked}
	guard.EXPECT().CheckInput(gomock.Any(), "ssn 123-45-6789").Return(blocked, nil)
	guard.EXPECT().CheckOutput(gomock.Any(), "fine").Return(models.GuardrailResult{Decision: models.DecisionAllowed}, nil)
	guard.EXPECT().CheckRail(gomock.Any(), "pii", "hello").Return(models.GuardrailResult{Decision: models.DecisionAllowed}, nil)
	guard.EXPECT().CheckRail(gomock.Any(), "nope", "hello").Return(models.GuardrailResult{}, fmt.Errorf("%w: nope", guardrail.ErrRailNotFound))

	container := setupTestAPI(t, guard, nil)

	tests := []struct {
		path       string
		text       string
		wantStatus int
		wantID     string
	}{
		{"/api/v1/check/input", "ssn 123-45-6789", http.StatusOK, "evt-9"},
		{"/api/v1/check/output", "fine", http.StatusOK, "evt-9"},
		{"/api/v1/rails/pii/check", "hello", http.StatusOK, "evt-9"},
		{"/api/v1/rails/nope/check", "hello", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := doJSON(t, container, http.MethodPost, tt.path, models.TextRequest{EventID: "evt-9", Text: tt.text})
			if recorder.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d. Body: %s", tt.wantStatus, recorder.Code, recorder.Body.String())
			}
			if tt.wantID != "" && !strings.Contains(recorder.Body.String(), tt.wantID) {
				t.Errorf("Expected request id %s in body %s", tt.wantID, recorder.Body.String())
			}
		})
	}
}

func TestAPI_ListRails(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockGuard(ctrl)
	guard.EXPECT().Rails().Return([]guardrail.RailInfo{
		{Name: "pii", Category: models.CategorySensitiveData, Stages: []models.Stage{models.StageInput}},
	})

	container := setupTestAPI(t, guard, nil)
	recorder := doJSON(t, container, http.MethodGet, "/api/v1/rails", nil)

	var response api.RailsResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.Rails) != 1 || response.Rails[0].Name != "pii" {
		t.Errorf("Unexpected rails %+v", response.Rails)
	}
}

func TestAPI_DocsAndMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	container := setupTestAPI(t, mocks.NewMockGuard(ctrl), nil)

	docs := doJSON(t, container, http.MethodGet, "/apidocs.json", nil)
	if docs.Code != http.StatusOK || !strings.Contains(docs.Body.String(), "/api/v1/guard") {
		t.Errorf("Unexpected docs response %d", docs.Code)
	}

	metrics := doJSON(t, container, http.MethodGet, "/metrics", nil)
	if metrics.Code != http.StatusOK {
		t.Errorf("Expected metrics status 200, got %d", metrics.Code)
	}
}

func TestAPI_RecoverPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockGuard(ctrl)
	guard.EXPECT().CheckInput(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, text string) (models.GuardrailResult, error) {
		panic("unexpected nil")
	})

	container := setupTestAPI(t, guard, nil)
	recorder := doJSON(t, container, http.MethodPost, "/api/v1/check/input", models.TextRequest{Text: "x"})
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", recorder.Code)
	}
}
