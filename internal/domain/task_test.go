package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	desc := "process the nightly export"
	task, err := NewTask("T1", &desc, time.Time{})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, "T1", task.Title)
	assert.Equal(t, &desc, task.Description)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.Result)
	assert.Nil(t, task.Error)
	assert.Nil(t, task.ExternalJobID)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, task.CreatedAt, task.ScheduledTime, "zero scheduled time defaults to creation time")
}

func TestNewTaskValidation(t *testing.T) {
	t.Parallel()

	_, err := NewTask("", nil, time.Time{})
	assert.ErrorIs(t, err, ErrEmptyTaskTitle)

	_, err = NewTask(strings.Repeat("x", MaxTitleLength+1), nil, time.Time{})
	assert.ErrorIs(t, err, ErrTaskTitleTooLong)
}

func TestNewTaskKeepsExplicitScheduledTime(t *testing.T) {
	t.Parallel()

	scheduled := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	task, err := NewTask("scheduled", nil, scheduled)
	require.NoError(t, err)
	assert.Equal(t, scheduled, task.ScheduledTime)
}

func TestMarkInProgress(t *testing.T) {
	t.Parallel()

	task, err := NewTask("T1", nil, time.Time{})
	require.NoError(t, err)

	task.MarkInProgress("job-123")

	assert.Equal(t, TaskStatusInProgress, task.Status)
	require.NotNil(t, task.ExternalJobID)
	assert.Equal(t, "job-123", *task.ExternalJobID)
	assert.Nil(t, task.CompletedAt)
}

func TestMarkInProgressWithoutJobID(t *testing.T) {
	t.Parallel()

	task, err := NewTask("T1", nil, time.Time{})
	require.NoError(t, err)

	task.MarkInProgress("")

	assert.Equal(t, TaskStatusInProgress, task.Status)
	assert.Nil(t, task.ExternalJobID)
}

func TestMarkCompleted(t *testing.T) {
	t.Parallel()

	task, err := NewTask("T1", nil, time.Time{})
	require.NoError(t, err)

	task.MarkCompleted("Task T1 completed successfully")

	assert.Equal(t, TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.False(t, task.CompletedAt.Before(task.CreatedAt))
	require.NotNil(t, task.Result)
	assert.Equal(t, "Task T1 completed successfully", *task.Result)
	assert.Nil(t, task.Error)
	assert.True(t, task.IsTerminal())
}

func TestMarkFailed(t *testing.T) {
	t.Parallel()

	task, err := NewTask("T1", nil, time.Time{})
	require.NoError(t, err)

	task.MarkFailed("boom")

	assert.Equal(t, TaskStatusFailed, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.Error)
	assert.Equal(t, "boom", *task.Error)
	assert.Nil(t, task.Result)
	assert.True(t, task.IsTerminal())
}

func TestCanRetry(t *testing.T) {
	t.Parallel()

	task, err := NewTask("T1", nil, time.Time{})
	require.NoError(t, err)

	assert.False(t, task.CanRetry(), "pending task is not retryable")

	task.MarkInProgress("")
	assert.False(t, task.CanRetry(), "in-progress task is not retryable")

	task.MarkFailed("boom")
	assert.True(t, task.CanRetry())

	task.Status = TaskStatusCompleted
	assert.True(t, task.CanRetry())
}

func TestNewRetry(t *testing.T) {
	t.Parallel()

	desc := "original description"
	scheduled := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	task, err := NewTask("T1", &desc, scheduled)
	require.NoError(t, err)
	task.MarkFailed("boom")

	retry, err := task.NewRetry()
	require.NoError(t, err)

	assert.NotEqual(t, task.ID, retry.ID)
	assert.Equal(t, "T1 (Retry)", retry.Title)
	assert.Equal(t, &desc, retry.Description)
	assert.Equal(t, scheduled, retry.ScheduledTime)
	assert.Equal(t, TaskStatusPending, retry.Status)
	assert.Nil(t, retry.CompletedAt)
	assert.Nil(t, retry.Error)
	assert.Nil(t, retry.ExternalJobID)

	// Original record is untouched by the clone.
	assert.Equal(t, TaskStatusFailed, task.Status)
}

func TestNewRetryTruncatesLongTitle(t *testing.T) {
	t.Parallel()

	task, err := NewTask(strings.Repeat("a", MaxTitleLength), nil, time.Time{})
	require.NoError(t, err)
	task.MarkFailed("boom")

	retry, err := task.NewRetry()
	require.NoError(t, err)

	assert.Len(t, retry.Title, MaxTitleLength)
	assert.True(t, strings.HasSuffix(retry.Title, " (Retry)"))
	assert.NoError(t, retry.Validate())
}

func TestNewRetryRejectsNonTerminal(t *testing.T) {
	t.Parallel()

	task, err := NewTask("T1", nil, time.Time{})
	require.NoError(t, err)

	_, err = task.NewRetry()
	assert.ErrorIs(t, err, ErrTaskNotRetryable)
}

func TestParseTaskStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    TaskStatus
		wantErr bool
	}{
		{"PENDING", TaskStatusPending, false},
		{"pending", TaskStatusPending, false},
		{"In_Progress", TaskStatusInProgress, false},
		{"completed", TaskStatusCompleted, false},
		{"FAILED", TaskStatusFailed, false},
		{"cancelled", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTaskStatus(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidTaskStatus, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestStatusDisplay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status TaskStatus
		want   string
	}{
		{TaskStatusPending, "Pending"},
		{TaskStatusInProgress, "In Progress"},
		{TaskStatusCompleted, "Completed"},
		{TaskStatusFailed, "Failed"},
	}

	for _, tt := range tests {
		task := Task{Status: tt.status}
		assert.Equal(t, tt.want, task.StatusDisplay())
	}
}
