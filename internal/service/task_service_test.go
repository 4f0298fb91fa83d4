package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/store"
	"github.com/taskforge/taskforge-api/internal/testutils"
)

// fakeQueue records submissions and optionally fails.
type fakeQueue struct {
	mu        sync.Mutex
	processed []uuid.UUID
	notified  []uuid.UUID
	submitErr error
}

func (q *fakeQueue) SubmitProcess(ctx context.Context, taskID uuid.UUID) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return "", q.submitErr
	}
	q.processed = append(q.processed, taskID)
	return uuid.NewString(), nil
}

func (q *fakeQueue) SubmitNotify(ctx context.Context, taskID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notified = append(q.notified, taskID)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func newService(t *testing.T) (*TaskService, *testutils.FakeTaskStore, *fakeQueue) {
	t.Helper()
	taskStore := testutils.NewFakeTaskStore()
	q := &fakeQueue{}
	svc, err := NewTaskService(taskStore, q, nil)
	require.NoError(t, err)
	return svc, taskStore, q
}

func TestCreateTask(t *testing.T) {
	svc, taskStore, q := newService(t)

	task, err := svc.CreateTask(context.Background(), CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, 1, taskStore.Count())
	require.Len(t, q.processed, 1)
	assert.Equal(t, task.ID, q.processed[0])
}

func TestCreateTaskEnqueueFailureKeepsPendingRecord(t *testing.T) {
	svc, taskStore, q := newService(t)
	q.submitErr = errors.New("broker down")

	_, err := svc.CreateTask(context.Background(), CreateTaskParams{Title: "T1"})
	require.ErrorIs(t, err, ErrEnqueueFailed)

	// The record survives for manual retry.
	assert.Equal(t, 1, taskStore.Count())
	tasks, err := taskStore.FindByStatus(context.Background(), domain.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestCreateTaskValidation(t *testing.T) {
	svc, taskStore, _ := newService(t)

	_, err := svc.CreateTask(context.Background(), CreateTaskParams{Title: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyTaskTitle)
	assert.Equal(t, 0, taskStore.Count())
}

func TestListTasksFilterIsCaseInsensitive(t *testing.T) {
	svc, taskStore, _ := newService(t)
	ctx := context.Background()

	pending, err := svc.CreateTask(ctx, CreateTaskParams{Title: "pending one"})
	require.NoError(t, err)

	failed, err := svc.CreateTask(ctx, CreateTaskParams{Title: "failed one"})
	require.NoError(t, err)
	loaded, err := taskStore.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	loaded.MarkFailed("boom")
	require.NoError(t, taskStore.Update(ctx, loaded))

	got, err := svc.ListTasks(ctx, "failed", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, failed.ID, got[0].ID)

	got, err = svc.ListTasks(ctx, "PENDING", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)

	got, err = svc.ListTasks(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.ListTasks(ctx, "bogus", 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
}

func TestUpdateTaskAppliesAllowListedFields(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "before"})
	require.NoError(t, err)

	title := "after"
	desc := "new description"
	scheduled := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	updated, err := svc.UpdateTask(ctx, task.ID, UpdateTaskParams{
		Title:         &title,
		Description:   &desc,
		ScheduledTime: &scheduled,
	})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, &desc, updated.Description)
	assert.Equal(t, scheduled, updated.ScheduledTime)
	assert.Equal(t, domain.TaskStatusPending, updated.Status, "status is untouched by field updates")
}

func TestRetryTask(t *testing.T) {
	svc, taskStore, q := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	loaded, err := taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	loaded.MarkFailed("boom")
	require.NoError(t, taskStore.Update(ctx, loaded))

	retry, err := svc.RetryTask(ctx, task.ID)
	require.NoError(t, err)

	assert.NotEqual(t, task.ID, retry.ID)
	assert.Equal(t, "T1 (Retry)", retry.Title)
	assert.Equal(t, domain.TaskStatusPending, retry.Status)
	assert.Equal(t, 2, taskStore.Count())
	require.Len(t, q.processed, 2)
	assert.Equal(t, retry.ID, q.processed[1])

	// Original record is untouched.
	original, err := taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, original.Status)
}

func TestRetryTaskRejectsNonTerminal(t *testing.T) {
	svc, taskStore, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	_, err = svc.RetryTask(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotRetryable)
	assert.Equal(t, 1, taskStore.Count(), "no new record is created")
}

func TestRetryTaskNotFound(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.RetryTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestUpdateStatusCompleted(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, task.ID, UpdateStatusParams{Status: "completed"})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.Nil(t, updated.Result, "completion without payload stores no result")
}

func TestUpdateStatusFailedDefaultsErrorMessage(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, task.ID, UpdateStatusParams{Status: "FAILED"})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusFailed, updated.Status)
	require.NotNil(t, updated.Error)
	assert.Equal(t, "An error occurred", *updated.Error)
	require.NotNil(t, updated.CompletedAt)
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, task.ID, UpdateStatusParams{Status: "ARCHIVED"})
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
}

func TestUpdateStatusRawAssignment(t *testing.T) {
	svc, taskStore, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	loaded, err := taskStore.GetByID(ctx, task.ID)
	require.NoError(t, err)
	loaded.MarkFailed("boom")
	require.NoError(t, taskStore.Update(ctx, loaded))

	// PENDING has no transition helper; it is a raw assignment that
	// leaves the terminal bookkeeping in place.
	updated, err := svc.UpdateStatus(ctx, task.ID, UpdateStatusParams{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, updated.Status)
}

func TestDeleteTask(t *testing.T) {
	svc, taskStore, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "T1"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, task.ID))
	assert.Equal(t, 0, taskStore.Count())

	err = svc.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}
