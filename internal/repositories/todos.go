package repositories

import (
	"context"
	"errors"
	"strings"

	"todo-api/internal/database"
	"todo-api/internal/models"
)

var errNoRowReturned = errors.New("insert returned no row")

// Assignment is one column = value pair of an UPDATE.
type Assignment struct {
	Column string
	Value  interface{}
}

// BuildSetClause turns a patch into the SET clause of an UPDATE. Columns
// appear in title, description, status order and updated_at is always
// touched. Values never appear in the clause text.
func BuildSetClause(patch models.TodoPatch) (string, []interface{}) {
	var assignments []Assignment
	if patch.Title.Set {
		assignments = append(assignments, Assignment{Column: "title", Value: patch.Title.Value})
	}
	if patch.Description.Set {
		var description interface{}
		if patch.Description.Value != nil {
			description = *patch.Description.Value
		}
		assignments = append(assignments, Assignment{Column: "description", Value: description})
	}
	if patch.Status.Set {
		assignments = append(assignments, Assignment{Column: "status", Value: string(patch.Status.Value)})
	}

	parts := make([]string, 0, len(assignments)+1)
	args := make([]interface{}, 0, len(assignments))
	for _, a := range assignments {
		parts = append(parts, a.Column+" = ?")
		args = append(args, a.Value)
	}
	parts = append(parts, "updated_at = CURRENT_TIMESTAMP")

	return strings.Join(parts, ", "), args
}

type TodoRepository struct {
	db database.Querier
}

func NewTodoRepository(db database.Querier) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Create(ctx context.Context, todo models.NewTodo) (models.Todo, error) {
	var description interface{}
	if todo.Description != nil {
		description = *todo.Description
	}

	var created []models.Todo
	err := r.db.Query(ctx, &created,
		"INSERT INTO todos (title, description, status) VALUES (?, ?, ?) RETURNING *",
		todo.Title, description, string(todo.Status),
	)
	if err != nil {
		return models.Todo{}, err
	}
	if len(created) == 0 {
		return models.Todo{}, &database.QueryError{
			Statement: "INSERT INTO todos",
			Err:       errNoRowReturned,
		}
	}
	return created[0], nil
}

func (r *TodoRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Todo, error) {
	query := "SELECT * FROM todos"
	var args []interface{}
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	todos := []models.Todo{}
	if err := r.db.Query(ctx, &todos, query, args...); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *TodoRepository) Count(ctx context.Context, status models.Status) (int64, error) {
	query := "SELECT COUNT(*) AS total FROM todos"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}

	var result struct {
		Total int64
	}
	if err := r.db.Query(ctx, &result, query, args...); err != nil {
		return 0, err
	}
	return result.Total, nil
}

func (r *TodoRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ids []int64
	if err := r.db.Query(ctx, &ids, "SELECT id FROM todos WHERE id = ?", id); err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *TodoRepository) Get(ctx context.Context, id int64) (models.Todo, error) {
	var todos []models.Todo
	if err := r.db.Query(ctx, &todos, "SELECT * FROM todos WHERE id = ?", id); err != nil {
		return models.Todo{}, err
	}
	if len(todos) == 0 {
		return models.Todo{}, models.ErrNotFound
	}
	return todos[0], nil
}

// Update applies patch and returns the stored row. A row that vanished
// between the existence check and the UPDATE reports models.ErrNotFound.
func (r *TodoRepository) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	clause, args := BuildSetClause(patch)
	args = append(args, id)

	var updated []models.Todo
	if err := r.db.Query(ctx, &updated, "UPDATE todos SET "+clause+" WHERE id = ? RETURNING *", args...); err != nil {
		return models.Todo{}, err
	}
	if len(updated) == 0 {
		return models.Todo{}, models.ErrNotFound
	}
	return updated[0], nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) (int64, error) {
	return r.db.Exec(ctx, "DELETE FROM todos WHERE id = ?", id)
}
