package repositories_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/database/dbtest"
	"todo-api/internal/models"
	"todo-api/internal/repositories"
)

func strPtr(s string) *string {
	return &s
}

func TestBuildSetClause(t *testing.T) {
	tests := []struct {
		name       string
		patch      models.TodoPatch
		wantClause string
		wantArgs   []interface{}
	}{
		{
			name:       "title only",
			patch:      models.TodoPatch{Title: models.Some("Buy milk")},
			wantClause: "title = ?, updated_at = CURRENT_TIMESTAMP",
			wantArgs:   []interface{}{"Buy milk"},
		},
		{
			name:       "status only",
			patch:      models.TodoPatch{Status: models.Some(models.StatusCompleted)},
			wantClause: "status = ?, updated_at = CURRENT_TIMESTAMP",
			wantArgs:   []interface{}{"completed"},
		},
		{
			name: "all fields keep column order",
			patch: models.TodoPatch{
				Status:      models.Some(models.StatusInProgress),
				Description: models.Some(strPtr("details")),
				Title:       models.Some("Write report"),
			},
			wantClause: "title = ?, description = ?, status = ?, updated_at = CURRENT_TIMESTAMP",
			wantArgs:   []interface{}{"Write report", "details", "in_progress"},
		},
		{
			name:       "description cleared",
			patch:      models.TodoPatch{Description: models.Some[*string](nil)},
			wantClause: "description = ?, updated_at = CURRENT_TIMESTAMP",
			wantArgs:   []interface{}{nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := repositories.BuildSetClause(tt.patch)
			assert.Equal(t, tt.wantClause, clause)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSetClause_ValuesNeverInlined(t *testing.T) {
	hostile := "x'; DROP TABLE todos; --"
	clause, args := repositories.BuildSetClause(models.TodoPatch{Title: models.Some(hostile)})

	assert.False(t, strings.Contains(clause, hostile))
	assert.Equal(t, strings.Count(clause, "?"), len(args))
}

func TestTodoRepository_ListOrderingAndFilter(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)
	ctx := context.Background()

	dbtest.Insert(t, client, "oldest", "pending", "2024-01-01 09:00:00")
	dbtest.Insert(t, client, "middle", "completed", "2024-01-02 09:00:00")
	dbtest.Insert(t, client, "newest", "pending", "2024-01-03 09:00:00")

	todos, err := repo.List(ctx, models.ListFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, "newest", todos[0].Title)
	assert.Equal(t, "middle", todos[1].Title)
	assert.Equal(t, "oldest", todos[2].Title)

	pending, err := repo.List(ctx, models.ListFilter{Status: models.StatusPending, Limit: 50})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, todo := range pending {
		assert.Equal(t, models.StatusPending, todo.Status)
	}

	page, err := repo.List(ctx, models.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "middle", page[0].Title)
}

func TestTodoRepository_ListEmpty(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)

	todos, err := repo.List(context.Background(), models.ListFilter{Limit: 50})
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Len(t, todos, 0)
}

func TestTodoRepository_Count(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)
	ctx := context.Background()

	dbtest.Insert(t, client, "a", "pending", "2024-01-01 09:00:00")
	dbtest.Insert(t, client, "b", "completed", "2024-01-01 10:00:00")
	dbtest.Insert(t, client, "c", "completed", "2024-01-01 11:00:00")

	total, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	completed, err := repo.Count(ctx, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), completed)

	inProgress, err := repo.Count(ctx, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inProgress)
}

func TestTodoRepository_ExistsGetDelete(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)
	ctx := context.Background()

	id := dbtest.Insert(t, client, "to remove", "pending", "2024-01-01 09:00:00")

	exists, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	todo, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "to remove", todo.Title)
	assert.Nil(t, todo.Description)

	affected, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	exists, err = repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)

	affected, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestTodoRepository_Create(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)
	ctx := context.Background()

	created, err := repo.Create(ctx, models.NewTodo{Title: "Buy milk", Status: models.StatusPending})
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Nil(t, created.Description)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	second, err := repo.Create(ctx, models.NewTodo{
		Title:       "Write report",
		Description: strPtr("quarterly"),
		Status:      models.StatusInProgress,
	})
	require.NoError(t, err)
	assert.Greater(t, second.ID, created.ID)
	require.NotNil(t, second.Description)
	assert.Equal(t, "quarterly", *second.Description)

	stored, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestTodoRepository_Update(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)
	ctx := context.Background()

	id := dbtest.Insert(t, client, "Write report", "pending", "2024-01-01 09:00:00")
	other := dbtest.Insert(t, client, "Untouched", "pending", "2024-01-01 09:00:00")

	before, err := repo.Get(ctx, id)
	require.NoError(t, err)

	updated, err := repo.Update(ctx, id, models.TodoPatch{
		Description: models.Some(strPtr("draft")),
		Status:      models.Some(models.StatusCompleted),
	})
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "Write report", updated.Title, "unpatched column must not change")
	require.NotNil(t, updated.Description)
	assert.Equal(t, "draft", *updated.Description)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt), "updated_at should advance")
	assert.True(t, updated.CreatedAt.Equal(before.CreatedAt))

	cleared, err := repo.Update(ctx, id, models.TodoPatch{Description: models.Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, cleared.Description)
	assert.Equal(t, models.StatusCompleted, cleared.Status)

	untouched, err := repo.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "Untouched", untouched.Title)
	assert.Equal(t, models.StatusPending, untouched.Status)
}

func TestTodoRepository_UpdateMissingRow(t *testing.T) {
	client := dbtest.NewClient(t)
	repo := repositories.NewTodoRepository(client)
	ctx := context.Background()

	dbtest.Insert(t, client, "Only row", "pending", "2024-01-01 09:00:00")

	_, err := repo.Update(ctx, 999999, models.TodoPatch{Status: models.Some(models.StatusCompleted)})
	assert.ErrorIs(t, err, models.ErrNotFound)

	completed, err := repo.Count(ctx, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(0), completed, "no row may be mutated")
}
