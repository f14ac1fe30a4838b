package services

import (
	"context"

	"todo-api/internal/database"
	"todo-api/internal/models"
	"todo-api/internal/repositories"
)

// TodoStore is what the handlers need from persistence.
type TodoStore interface {
	InitializeSchema(ctx context.Context) error
	Create(ctx context.Context, todo models.NewTodo) (models.Todo, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.Todo, int64, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (models.Todo, error)
	Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error)
	Delete(ctx context.Context, id int64) error
}

// DatabaseStore is the TodoStore backed directly by the database client.
type DatabaseStore struct {
	client *database.Client
	repo   *repositories.TodoRepository
}

func NewDatabaseStore(client *database.Client) *DatabaseStore {
	return &DatabaseStore{
		client: client,
		repo:   repositories.NewTodoRepository(client),
	}
}

func (s *DatabaseStore) InitializeSchema(ctx context.Context) error {
	return s.client.InitializeSchema(ctx)
}

func (s *DatabaseStore) Create(ctx context.Context, todo models.NewTodo) (models.Todo, error) {
	return s.repo.Create(ctx, todo)
}

// List returns one page and the total number of matching rows. The two
// statements are not run in a transaction.
func (s *DatabaseStore) List(ctx context.Context, filter models.ListFilter) ([]models.Todo, int64, error) {
	todos, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, filter.Status)
	if err != nil {
		return nil, 0, err
	}

	return todos, total, nil
}

func (s *DatabaseStore) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *DatabaseStore) Get(ctx context.Context, id int64) (models.Todo, error) {
	return s.repo.Get(ctx, id)
}

func (s *DatabaseStore) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	return s.repo.Update(ctx, id, patch)
}

func (s *DatabaseStore) Delete(ctx context.Context, id int64) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Health reports whether the database answers a ping.
func (s *DatabaseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}
