package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/service"
	"github.com/taskforge/taskforge-api/internal/testutils"
)

// stubQueue records submissions and optionally fails enqueues.
type stubQueue struct {
	mu        sync.Mutex
	processed []uuid.UUID
	submitErr error
}

func (q *stubQueue) SubmitProcess(ctx context.Context, taskID uuid.UUID) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return "", q.submitErr
	}
	q.processed = append(q.processed, taskID)
	return uuid.NewString(), nil
}

func (q *stubQueue) SubmitNotify(ctx context.Context, taskID uuid.UUID) error { return nil }

func (q *stubQueue) Close() error { return nil }

type handlerFixture struct {
	router *chi.Mux
	store  *testutils.FakeTaskStore
	queue  *stubQueue
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	taskStore := testutils.NewFakeTaskStore()
	q := &stubQueue{}
	svc, err := service.NewTaskService(taskStore, q, nil)
	require.NoError(t, err)

	handler := NewTaskHandler(svc)
	router := chi.NewRouter()
	router.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", handler.CreateTask)
		r.Get("/", handler.ListTasks)
		r.Get("/{id}", handler.GetTask)
		r.Put("/{id}", handler.UpdateTask)
		r.Delete("/{id}", handler.DeleteTask)
		r.Post("/{id}/retry", handler.RetryTask)
		r.Post("/{id}/update_status", handler.UpdateStatus)
	})

	return &handlerFixture{router: router, store: taskStore, queue: q}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) TaskResponse {
	t.Helper()
	var resp TaskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

// seedTask creates a task through the store directly, bypassing the
// HTTP surface, and optionally moves it to a terminal status.
func (f *handlerFixture) seedTask(t *testing.T, title string, status domain.TaskStatus) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(title, nil, time.Time{})
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), task))

	switch status {
	case domain.TaskStatusCompleted:
		task.MarkCompleted("done")
	case domain.TaskStatusFailed:
		task.MarkFailed("boom")
	case domain.TaskStatusInProgress:
		task.MarkInProgress("job-1")
	case domain.TaskStatusPending:
		return task
	}
	require.NoError(t, f.store.Update(context.Background(), task))
	return task
}

func TestTaskHandler_CreateTask(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "Build report"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeTask(t, w)
	assert.Equal(t, "Build report", resp.Title)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "Pending", resp.StatusDisplay)
	assert.Nil(t, resp.CompletedAt)
	assert.Len(t, f.queue.processed, 1)
}

func TestTaskHandler_CreateTaskValidation(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.store.Count())
}

func TestTaskHandler_CreateTaskEnqueueFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.queue.submitErr = errors.New("broker down")

	w := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "Build report"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// The record survives the enqueue failure.
	assert.Equal(t, 1, f.store.Count())
}

func TestTaskHandler_ListTasksStatusFilter(t *testing.T) {
	f := newHandlerFixture(t)
	f.seedTask(t, "pending one", domain.TaskStatusPending)
	failed := f.seedTask(t, "failed one", domain.TaskStatusFailed)

	w := f.do(t, http.MethodGet, "/api/tasks?status=failed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []TaskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, failed.ID.String(), resp[0].ID)
	assert.Equal(t, "Failed", resp[0].StatusDisplay)
}

func TestTaskHandler_ListTasksInvalidStatus(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_ListTasksEmpty(t *testing.T) {
	f := newHandlerFixture(t)

	w := f.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestTaskHandler_GetTask(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "T1", domain.TaskStatusPending)

	w := f.do(t, http.MethodGet, "/api/tasks/"+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, task.ID.String(), decodeTask(t, w).ID)

	w = f.do(t, http.MethodGet, "/api/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_UpdateTaskAllowList(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "before", domain.TaskStatusPending)

	w := f.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(),
		map[string]interface{}{"title": "after"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "after", decodeTask(t, w).Title)
}

func TestTaskHandler_UpdateTaskRejectsSystemFields(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "before", domain.TaskStatusPending)

	for _, body := range []map[string]interface{}{
		{"status": "COMPLETED"},
		{"title": "after", "result": "forged"},
		{"external_job_id": "forged"},
		{"completed_at": time.Now()},
	} {
		w := f.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v must be rejected", body)
	}

	// The record is untouched.
	loaded, err := f.store.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "before", loaded.Title)
	assert.Equal(t, domain.TaskStatusPending, loaded.Status)
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "T1", domain.TaskStatusPending)

	w := f.do(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskHandler_RetryTask(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "T1", domain.TaskStatusFailed)

	w := f.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/retry", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeTask(t, w)
	assert.Equal(t, "T1 (Retry)", resp.Title)
	assert.Equal(t, "PENDING", resp.Status)
	assert.NotEqual(t, task.ID.String(), resp.ID)
	assert.Len(t, f.queue.processed, 1)
}

func TestTaskHandler_RetryTaskRejectsNonTerminal(t *testing.T) {
	f := newHandlerFixture(t)

	for _, status := range []domain.TaskStatus{
		domain.TaskStatusPending,
		domain.TaskStatusInProgress,
	} {
		task := f.seedTask(t, "T1", status)
		w := f.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/retry", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "status %s must not be retryable", status)
	}
}

func TestTaskHandler_UpdateStatus(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "T1", domain.TaskStatusPending)

	result := "manual result"
	w := f.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/update_status",
		UpdateStatusRequest{Status: "completed", Result: &result})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeTask(t, w)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "Completed", resp.StatusDisplay)
	require.NotNil(t, resp.CompletedAt)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "manual result", *resp.Result)
}

func TestTaskHandler_UpdateStatusInvalid(t *testing.T) {
	f := newHandlerFixture(t)
	task := f.seedTask(t, "T1", domain.TaskStatusPending)

	w := f.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/update_status",
		UpdateStatusRequest{Status: "ARCHIVED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/update_status",
		map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "status is required")
}
