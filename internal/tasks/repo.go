package tasks

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Repository persists tasks by primary key. FindByID and DeleteByID return
// ErrNotFound for unknown ids; Save inserts when ID is zero and updates
// otherwise, stamping CreatedAt on insert and UpdatedAt on every write.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Task, error)
	FindAll(ctx context.Context) ([]Task, error)
	Save(ctx context.Context, t Task) (Task, error)
	DeleteByID(ctx context.Context, id int64) error
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]Task
	now   func() time.Time
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepo) FindByID(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t.clone(), nil
}

func (r *InMemoryRepo) FindAll(_ context.Context) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		out = append(out, t.clone())
	}
	slices.SortFunc(out, func(a, b Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *InMemoryRepo) Save(_ context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t = t.clone()
	if t.ID == 0 {
		r.seq++
		t.ID = r.seq
		t.CreatedAt = now
	} else {
		existing, ok := r.store[t.ID]
		if !ok {
			return Task{}, ErrNotFound
		}
		t.CreatedAt = existing.CreatedAt
	}
	t.UpdatedAt = now

	r.store[t.ID] = t
	return t.clone(), nil
}

func (r *InMemoryRepo) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}
