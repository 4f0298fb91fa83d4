// Package testutils provides shared test doubles for unit tests that
// need a task store without a real database.
package testutils

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/store"
)

// FakeTaskStore is an in-memory implementation of store.TaskStore.
// Error fields, when set, force the corresponding operation to fail.
type FakeTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Task

	CreateErr error
	GetErr    error
	UpdateErr error
	DeleteErr error
	ListErr   error

	// BeforeStatusCheck, when set, runs at the start of
	// UpdateWithStatusCheck. Tests use it to mutate the stored record
	// between a caller's load and its compare-and-set write.
	BeforeStatusCheck func()
}

var _ store.TaskStore = (*FakeTaskStore)(nil)

// NewFakeTaskStore creates an empty fake store.
func NewFakeTaskStore() *FakeTaskStore {
	return &FakeTaskStore{tasks: make(map[uuid.UUID]domain.Task)}
}

// Create implements store.TaskStore.Create.
func (f *FakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if err := task.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if task.ExternalJobID != nil {
		for _, existing := range f.tasks {
			if existing.ExternalJobID != nil && *existing.ExternalJobID == *task.ExternalJobID {
				return store.ErrDuplicateJobID
			}
		}
	}

	f.tasks[task.ID] = *task
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (f *FakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	task, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := task
	return &clone, nil
}

// List implements store.TaskStore.List.
func (f *FakeTaskStore) List(
	ctx context.Context,
	status *domain.TaskStatus,
	limit, offset int,
) ([]*domain.Task, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	matched := []*domain.Task{}
	for _, task := range f.tasks {
		if status != nil && task.Status != *status {
			continue
		}
		clone := task
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []*domain.Task{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// FindByStatus implements store.TaskStore.FindByStatus.
func (f *FakeTaskStore) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	matched := []*domain.Task{}
	for _, task := range f.tasks {
		if task.Status != status {
			continue
		}
		clone := task
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// Update implements store.TaskStore.Update.
func (f *FakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	if err := task.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	f.tasks[task.ID] = *task
	return nil
}

// UpdateWithStatusCheck implements store.TaskStore.UpdateWithStatusCheck.
func (f *FakeTaskStore) UpdateWithStatusCheck(
	ctx context.Context,
	task *domain.Task,
	expected domain.TaskStatus,
) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	if err := task.Validate(); err != nil {
		return err
	}
	if f.BeforeStatusCheck != nil {
		f.BeforeStatusCheck()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if current.Status != expected {
		return store.ErrStatusConflict
	}
	f.tasks[task.ID] = *task
	return nil
}

// Delete implements store.TaskStore.Delete.
func (f *FakeTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

// DeleteCompletedBefore implements store.TaskStore.DeleteCompletedBefore.
func (f *FakeTaskStore) DeleteCompletedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	if f.DeleteErr != nil {
		return 0, f.DeleteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var deleted int64
	for id, task := range f.tasks {
		if task.Status != domain.TaskStatusCompleted {
			continue
		}
		if task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(f.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

// WithTx implements store.TaskStore.WithTx. The fake has no
// transactions; it returns itself.
func (f *FakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return f
}

// Count returns the number of stored tasks.
func (f *FakeTaskStore) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tasks)
}
