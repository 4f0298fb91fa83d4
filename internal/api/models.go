package api

import (
	"time"

	"github.com/taskforge/taskforge-api/internal/domain"
)

// Common request/response structures

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for the login endpoint.
type AuthResponse struct {
	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"token"`

	// ExpiresAt is the ISO 8601 timestamp when the access token expires
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CreateTaskRequest defines the payload for creating a task. Status and
// the other lifecycle fields are server-managed and not accepted here.
type CreateTaskRequest struct {
	Title         string     `json:"title"          validate:"required,min=1,max=200"`
	Description   *string    `json:"description"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// UpdateTaskRequest defines the payload for field updates. Only the
// fields listed here may be changed; any other key in the body is
// rejected by strict decoding.
type UpdateTaskRequest struct {
	Title         *string    `json:"title"          validate:"omitempty,min=1,max=200"`
	Description   *string    `json:"description"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// UpdateStatusRequest defines the payload for the explicit status
// transition endpoint.
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Result *string `json:"result"`
	Error  *string `json:"error"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	Status        string     `json:"status"`
	StatusDisplay string     `json:"status_display"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	CompletedAt   *time.Time `json:"completed_at"`
	Result        *string    `json:"result"`
	Error         *string    `json:"error"`
	ExternalJobID *string    `json:"external_job_id"`
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:            task.ID.String(),
		Title:         task.Title,
		Description:   task.Description,
		Status:        string(task.Status),
		StatusDisplay: task.StatusDisplay(),
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
		ScheduledTime: task.ScheduledTime,
		CompletedAt:   task.CompletedAt,
		Result:        task.Result,
		Error:         task.Error,
		ExternalJobID: task.ExternalJobID,
	}
}

// tasksToResponse converts a slice of tasks, always returning a non-nil
// slice so the JSON body is [] rather than null.
func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return out
}
