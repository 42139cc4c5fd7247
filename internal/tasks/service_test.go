package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepo records how often each Repository method is called.
type countingRepo struct {
	Repository
	saves   int
	deletes int
}

func (c *countingRepo) Save(ctx context.Context, t Task) (Task, error) {
	c.saves++
	return c.Repository.Save(ctx, t)
}

func (c *countingRepo) DeleteByID(ctx context.Context, id int64) error {
	c.deletes++
	return c.Repository.DeleteByID(ctx, id)
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	repo := &countingRepo{Repository: NewInMemoryRepo()}
	return NewService(repo, discardLogger()), repo
}

func ptr[T any](v T) *T { return &v }

func seedTask(t *testing.T, svc *Service, task Task) Task {
	t.Helper()
	saved, err := svc.SaveTask(context.Background(), task)
	require.NoError(t, err)
	return saved
}

func TestService_MissingIDIsNotFound(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetTaskByID(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateTask(ctx, 7, TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CompleteTask(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteTask(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, repo.saves)
	assert.Zero(t, repo.deletes, "delete of a missing task must not reach the repository")
}

func TestService_SaveThenGetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	due := time.Date(2031, 5, 1, 9, 0, 0, 0, time.UTC)

	created := seedTask(t, svc, Task{Title: "Test Task", Description: ptr("Test Task Description"), DueDate: &due})
	require.NotZero(t, created.ID)

	got, err := svc.GetTaskByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Task", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Test Task Description", *got.Description)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))
	assert.False(t, got.Completed)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestService_SaveRejectsBlankTitle(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.SaveTask(context.Background(), Task{Title: " "})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"title: Title cannot be blank"}, vErr.Messages())
	assert.Zero(t, repo.saves)
}

func TestService_GetAllTasks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	list, err := svc.GetAllTasks(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	seedTask(t, svc, Task{Title: "Test Task"})
	seedTask(t, svc, Task{Title: "Another Task"})

	list, err = svc.GetAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Test Task", list[0].Title)
	assert.Equal(t, "Another Task", list[1].Title)
}

func TestService_UpdateWithChangesWrites(t *testing.T) {
	svc, repo := newTestService(t)
	created := seedTask(t, svc, Task{Title: "Test Task", Description: ptr("Test Task Description")})
	writes := repo.saves

	got, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{
		Title:       ptr("Updated Task"),
		Description: ptr("Updated Task Description"),
	})
	require.NoError(t, err)
	assert.Equal(t, writes+1, repo.saves)
	assert.Equal(t, "Updated Task", got.Title)
	assert.Equal(t, "Updated Task Description", *got.Description)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestService_NoopUpdateSkipsWrite(t *testing.T) {
	svc, repo := newTestService(t)
	due := time.Date(2031, 5, 1, 9, 0, 0, 0, time.UTC)
	created := seedTask(t, svc, Task{Title: "Test Task", Description: ptr("desc"), DueDate: &due})
	writes := repo.saves

	got, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{
		Title:       ptr("Test Task"),
		Description: ptr("desc"),
		// Same instant, different location.
		DueDate:   ptr(due.In(time.FixedZone("CET", 3600))),
		Completed: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, writes, repo.saves, "no-op update must not write")
	assert.Equal(t, created, got)
}

func TestService_NoopUpdateWithSubMicrosecondDueDate(t *testing.T) {
	svc, repo := newTestService(t)
	due := time.Date(2031, 5, 1, 9, 0, 0, 123456789, time.FixedZone("CET", 3600))
	created := seedTask(t, svc, Task{Title: "Test Task", DueDate: &due})
	require.NotNil(t, created.DueDate)
	assert.Equal(t, time.UTC, created.DueDate.Location())
	assert.Equal(t, 123456000, created.DueDate.Nanosecond())
	writes := repo.saves

	got, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, writes, repo.saves, "resending the same due date must not write")
	assert.Equal(t, created, got)
}

func TestService_EmptyPatchSkipsWrite(t *testing.T) {
	svc, repo := newTestService(t)
	created := seedTask(t, svc, Task{Title: "Test Task"})
	writes := repo.saves

	got, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{})
	require.NoError(t, err)
	assert.Equal(t, writes, repo.saves)
	assert.Equal(t, created, got)
}

func TestService_PartialUpdateKeepsOtherFields(t *testing.T) {
	svc, _ := newTestService(t)
	due := time.Date(2031, 5, 1, 9, 0, 0, 0, time.UTC)
	created := seedTask(t, svc, Task{Title: "old", Description: ptr("desc"), DueDate: &due, Completed: true})

	got, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{Title: ptr("new")})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "desc", *got.Description)
	assert.True(t, got.DueDate.Equal(due))
	assert.True(t, got.Completed, "absent completed leaves the stored value")
}

func TestService_UpdateCanReopen(t *testing.T) {
	svc, _ := newTestService(t)
	created := seedTask(t, svc, Task{Title: "done", Completed: true})

	got, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{Completed: ptr(false)})
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestService_UpdateRejectsInvalidPatch(t *testing.T) {
	svc, repo := newTestService(t)
	created := seedTask(t, svc, Task{Title: "ok"})
	writes := repo.saves

	_, err := svc.UpdateTask(context.Background(), created.ID, TaskPatch{Title: ptr("")})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, writes, repo.saves)
}

func TestService_CompleteAlwaysWrites(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	created := seedTask(t, svc, Task{Title: "Buy milk"})
	writes := repo.saves

	got, err := svc.CompleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, writes+1, repo.saves)

	got, err = svc.CompleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, writes+2, repo.saves, "completing an already completed task still writes")
}

func TestService_DeleteTask(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	created := seedTask(t, svc, Task{Title: "Another Task"})

	require.NoError(t, svc.DeleteTask(ctx, created.ID))
	assert.Equal(t, 1, repo.deletes)

	_, err := svc.GetTaskByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.DeleteTask(ctx, created.ID), ErrNotFound)
	assert.Equal(t, 1, repo.deletes)
}
