package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SAP-F-2025/cat-service/internal/cat"
	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/services"
	"github.com/SAP-F-2025/cat-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCATService is a mock implementation of services.CATService
type MockCATService struct {
	mock.Mock
}

func (m *MockCATService) Start(ctx context.Context, req *services.StartSessionRequest) (*services.StartSessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StartSessionResponse), args.Error(1)
}

func (m *MockCATService) Answer(ctx context.Context, req *services.AnswerRequest) (*services.AnswerResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AnswerResponse), args.Error(1)
}

func (m *MockCATService) Status(ctx context.Context, sessionID string) (*services.SessionStatusResponse, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionStatusResponse), args.Error(1)
}

func (m *MockCATService) Abandon(ctx context.Context, sessionID string) (*services.SessionStatusResponse, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionStatusResponse), args.Error(1)
}

func (m *MockCATService) Finish(ctx context.Context, req *services.FinishRequest) (*services.SessionStatusResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionStatusResponse), args.Error(1)
}

func (m *MockCATService) GetResults(ctx context.Context, sessionID string) (*services.SessionResultsResponse, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionResultsResponse), args.Error(1)
}

func (m *MockCATService) GetHistory(ctx context.Context, userID string, filters repositories.SessionFilters) (*services.SessionHistoryResponse, error) {
	args := m.Called(ctx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SessionHistoryResponse), args.Error(1)
}

// MockImportExportService is a mock implementation of services.ImportExportService
type MockImportExportService struct {
	mock.Mock
}

func (m *MockImportExportService) ImportItemsFromFile(ctx context.Context, reader io.Reader, filename string, creatorID string) (*services.ImportResult, error) {
	args := m.Called(ctx, reader, filename, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

func (m *MockImportExportService) ImportItemsFromCSV(ctx context.Context, reader io.Reader, creatorID string) (*services.ImportResult, error) {
	args := m.Called(ctx, reader, creatorID)
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

func (m *MockImportExportService) ImportItemsFromExcel(ctx context.Context, reader io.Reader, creatorID string) (*services.ImportResult, error) {
	args := m.Called(ctx, reader, creatorID)
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

func (m *MockImportExportService) ExportItemsToCSV(ctx context.Context, filters repositories.ItemFilters) ([]byte, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockImportExportService) ExportItemsToExcel(ctx context.Context, filters repositories.ItemFilters) ([]byte, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]byte), args.Error(1)
}

// stubItemBank serves GetByID and Publish from a map
type stubItemBank struct {
	services.ItemBankService
	items map[uint]*models.Item
}

func (s *stubItemBank) GetByID(ctx context.Context, id uint) (*services.ItemResponse, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, services.ErrItemNotFound
	}
	return &services.ItemResponse{Item: item, Options: item.Options.Data()}, nil
}

func (s *stubItemBank) Publish(ctx context.Context, id uint) (*services.ItemResponse, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, services.ErrItemNotFound
	}
	if item.Status == models.ItemRetired {
		return nil, services.ErrItemInvalidStatus
	}
	item.Status = models.ItemPublished
	return &services.ItemResponse{Item: item, Options: item.Options.Data()}, nil
}

type stubServiceManager struct {
	cat          services.CATService
	itemBank     services.ItemBankService
	importExport services.ImportExportService
}

func (s *stubServiceManager) CAT() services.CATService                   { return s.cat }
func (s *stubServiceManager) ItemBank() services.ItemBankService         { return s.itemBank }
func (s *stubServiceManager) ImportExport() services.ImportExportService { return s.importExport }

type testServer struct {
	router       *gin.Engine
	manager      *HandlerManager
	cat          *MockCATService
	importExport *MockImportExportService
	items        *stubItemBank
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		cat:          new(MockCATService),
		importExport: new(MockImportExportService),
		items:        &stubItemBank{items: map[uint]*models.Item{}},
	}
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	manager := NewHandlerManager(&stubServiceManager{cat: ts.cat, itemBank: ts.items, importExport: ts.importExport}, logger)

	ts.manager = manager
	ts.router = gin.New()
	manager.SetupRoutes(ts.router)
	return ts
}

func (ts *testServer) do(method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer()
	w := ts.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStartSession_UsesHeaderIdentity(t *testing.T) {
	ts := newTestServer()

	ts.cat.On("Start", mock.Anything, &services.StartSessionRequest{UserID: "user-1", ExamType: "practice"}).
		Return(&services.StartSessionResponse{
			SessionID: "s-1",
			ExamType:  "practice",
			FirstItem: &services.ExamineeItem{ID: 3, Text: "Q", Category: "basic_care"},
		}, nil)

	w := ts.do(http.MethodPost, "/api/v1/cat/start", map[string]string{"exam_type": "practice"}, "user-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"basic_care"`)
	assert.NotContains(t, w.Body.String(), "correct_answer")
	ts.cat.AssertExpectations(t)
}

func TestStartSession_ItemBankExhausted(t *testing.T) {
	ts := newTestServer()
	ts.cat.On("Start", mock.Anything, mock.Anything).Return(nil, &cat.ItemBankExhaustedError{Domain: "pharmacology", SessionID: "sess-9"})

	w := ts.do(http.MethodPost, "/api/v1/cat/start", map[string]string{"exam_type": "practice"}, "user-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeItemBankExhausted, resp.Code)
	assert.Equal(t, map[string]interface{}{"content_domain": "pharmacology", "session_id": "sess-9"}, resp.Details)
}

func TestSubmitAnswer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"session not found", services.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
		{"session not active", services.ErrSessionNotActive, http.StatusConflict, CodeSessionNotActive},
		{"item mismatch", services.ErrItemMismatch, http.StatusConflict, CodeItemMismatch},
		{"malformed answer", services.ErrMalformedAnswer, http.StatusBadRequest, CodeMalformedAnswer},
		{"validation", fmt.Errorf("validation failed: %w", services.ValidationErrors{{Field: "item_id", Message: "is required"}}), http.StatusBadRequest, CodeValidation},
		{"exhausted", &cat.ItemBankExhaustedError{}, http.StatusConflict, CodeItemBankExhausted},
		{"database down", errors.New("connection reset"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.cat.On("Answer", mock.Anything, mock.Anything).Return(nil, tc.err)

			w := ts.do(http.MethodPost, "/api/v1/cat/answer", map[string]interface{}{
				"session_id": "s-1", "item_id": 3, "is_correct": true,
			}, "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
}

func TestSubmitAnswer_Completed(t *testing.T) {
	ts := newTestServer()
	theta, se, p := 1.2, 0.3, 0.99
	ts.cat.On("Answer", mock.Anything, mock.MatchedBy(func(req *services.AnswerRequest) bool {
		return req.SelectedOption != nil && *req.SelectedOption == "B" && req.IsCorrect == nil
	})).Return(&services.AnswerResponse{
		SessionID: "s-1", ItemsAnswered: 60, Completed: true,
		Verdict: "pass", StopReason: "confidence",
		FinalAbility: &theta, StandardError: &se, PassingProbability: &p,
	}, nil)

	w := ts.do(http.MethodPost, "/api/v1/cat/answer", map[string]interface{}{
		"session_id": "s-1", "item_id": 3, "selected_option": "B", "response_time_ms": 4200,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp services.AnswerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Completed)
	assert.Nil(t, resp.NextItem)
	assert.Equal(t, "pass", resp.Verdict)
}

func TestSubmitAnswer_BadJSON(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cat/answer", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	ts.cat.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestSessionReadEndpoints(t *testing.T) {
	ts := newTestServer()
	ts.cat.On("Status", mock.Anything, "s-1").Return(&services.SessionStatusResponse{SessionID: "s-1", Status: models.SessionInProgress}, nil)
	ts.cat.On("GetResults", mock.Anything, "s-1").Return(nil, services.ErrSessionNotEnded)
	ts.cat.On("Abandon", mock.Anything, "s-1").Return(&services.SessionStatusResponse{SessionID: "s-1", Status: models.SessionAbandoned}, nil)

	w := ts.do(http.MethodGet, "/api/v1/cat/status/s-1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"in_progress"`)

	w = ts.do(http.MethodGet, "/api/v1/cat/results/s-1", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeSessionNotEnded, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/api/v1/cat/abandon/s-1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"abandoned"`)
}

func TestFinishSession(t *testing.T) {
	ts := newTestServer()
	ts.cat.On("Finish", mock.Anything, &services.FinishRequest{SessionID: "s-1", Mode: "evaluate"}).
		Return(&services.SessionStatusResponse{SessionID: "s-1", Status: models.SessionCompleted, Verdict: "inconclusive"}, nil)

	w := ts.do(http.MethodPost, "/api/v1/cat/finish", map[string]string{"session_id": "s-1", "mode": "evaluate"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"verdict":"inconclusive"`)
}

func TestGetHistory(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/api/v1/cat/history", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ts.cat.On("GetHistory", mock.Anything, "user-1", mock.MatchedBy(func(f repositories.SessionFilters) bool {
		return f.Limit == 5 && f.Offset == 5 && f.Status != nil && *f.Status == models.SessionCompleted
	})).Return(&services.SessionHistoryResponse{Total: 7, Limit: 5, Offset: 5}, nil)

	w = ts.do(http.MethodGet, "/api/v1/cat/history?page=2&size=5&status=completed", nil, "user-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":7`)
}

func TestItemEndpoints(t *testing.T) {
	ts := newTestServer()
	ts.items.items[4] = &models.Item{ID: 4, Text: "Q", CorrectAnswer: "A", Status: models.ItemDraft}
	ts.items.items[5] = &models.Item{ID: 5, Text: "Q", CorrectAnswer: "A", Status: models.ItemRetired}

	w := ts.do(http.MethodGet, "/api/v1/items/4", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"correct_answer":"A"`)

	w = ts.do(http.MethodGet, "/api/v1/items/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/items/40", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeItemNotFound, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/api/v1/items/4/publish", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"published"`)

	w = ts.do(http.MethodPost, "/api/v1/items/5/publish", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeItemInvalidStatus, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/api/v1/items", map[string]string{"text": "Q"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestImportItems(t *testing.T) {
	ts := newTestServer()
	ts.importExport.On("ImportItemsFromFile", mock.Anything, mock.Anything, "bank.csv", "author-1").
		Return(&services.ImportResult{TotalRows: 1, SuccessCount: 1, Status: models.ImportCompleted}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "bank.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("text,correct_answer,content_domain,difficulty,discrimination\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "author-1")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
	ts.importExport.AssertExpectations(t)
}

func TestImportItems_RejectsOversizedUpload(t *testing.T) {
	ts := newTestServer()
	ts.manager.itemHandler.maxImportBytes = 32

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "bank.csv")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 1024))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "author-1")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, CodeFileTooLarge, decodeError(t, w).Code)
	ts.importExport.AssertNotCalled(t, "ImportItemsFromFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExportItems(t *testing.T) {
	ts := newTestServer()
	ts.importExport.On("ExportItemsToCSV", mock.Anything, mock.Anything).Return([]byte("text\nQ\n"), nil)

	w := ts.do(http.MethodGet, "/api/v1/items/export", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, csvContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "items.csv")

	w = ts.do(http.MethodGet, "/api/v1/items/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
