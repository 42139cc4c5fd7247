package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// Service implements task use cases on top of a Repository. It keeps no
// state of its own; concurrent writes to one task are resolved by storage.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetTaskByID(ctx context.Context, id int64) (Task, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *Service) GetAllTasks(ctx context.Context) ([]Task, error) {
	list, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if list == nil {
		list = []Task{}
	}
	return list, nil
}

// SaveTask persists t as given. A zero ID inserts a new row.
func (s *Service) SaveTask(ctx context.Context, t Task) (Task, error) {
	if err := ValidateTask(t); err != nil {
		return Task{}, err
	}
	t.DueDate = normalizeTime(t.DueDate)
	saved, err := s.repo.Save(ctx, t)
	if err != nil {
		return Task{}, fmt.Errorf("save task: %w", err)
	}
	taskMutations.WithLabelValues("save").Inc()
	return saved, nil
}

// UpdateTask applies the non-nil fields of patch and writes only when the
// result differs from what is stored.
func (s *Service) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (Task, error) {
	if err := patch.validate(); err != nil {
		return Task{}, err
	}

	existing, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}

	updated := existing.clone()
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Description != nil {
		d := *patch.Description
		updated.Description = &d
	}
	if patch.DueDate != nil {
		updated.DueDate = normalizeTime(patch.DueDate)
	}
	if patch.Completed != nil {
		updated.Completed = *patch.Completed
	}

	if sameContent(existing, updated) {
		taskUpdatesSkipped.Inc()
		s.logger.DebugContext(ctx, "task_update_skipped", slog.Int64("task_id", id))
		return existing, nil
	}

	saved, err := s.repo.Save(ctx, updated)
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	taskMutations.WithLabelValues("update").Inc()
	return saved, nil
}

// CompleteTask marks the task completed. It always writes, even when the task
// is already completed.
func (s *Service) CompleteTask(ctx context.Context, id int64) (Task, error) {
	t, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}

	t.Completed = true
	saved, err := s.repo.Save(ctx, t)
	if err != nil {
		return Task{}, fmt.Errorf("complete task %d: %w", id, err)
	}
	taskMutations.WithLabelValues("complete").Inc()
	return saved, nil
}

// DeleteTask removes the task, failing with ErrNotFound when it does not exist.
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.GetTaskByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	taskMutations.WithLabelValues("delete").Inc()
	return nil
}
