package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/database"
	"todo-api/internal/handlers"
	"todo-api/internal/models"
)

// MockTodoStore keeps todos in memory. Setting err makes every call fail;
// vanishOnUpdate simulates a row deleted between the existence check and
// the UPDATE.
type MockTodoStore struct {
	todos          map[int64]models.Todo
	nextID         int64
	now            time.Time
	err            error
	schemaErr      error
	schemaCalls    int
	vanishOnUpdate bool
}

func NewMockTodoStore() *MockTodoStore {
	return &MockTodoStore{
		todos:  map[int64]models.Todo{},
		nextID: 1,
		now:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *MockTodoStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *MockTodoStore) InitializeSchema(ctx context.Context) error {
	m.schemaCalls++
	return m.schemaErr
}

func (m *MockTodoStore) Create(ctx context.Context, todo models.NewTodo) (models.Todo, error) {
	if m.err != nil {
		return models.Todo{}, m.err
	}
	ts := m.tick()
	created := models.Todo{
		ID:          m.nextID,
		Title:       todo.Title,
		Description: todo.Description,
		Status:      todo.Status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	m.todos[created.ID] = created
	m.nextID++
	return created, nil
}

func (m *MockTodoStore) List(ctx context.Context, filter models.ListFilter) ([]models.Todo, int64, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var matched []models.Todo
	for _, t := range m.todos {
		if filter.Status == "" || t.Status == filter.Status {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MockTodoStore) Exists(ctx context.Context, id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.todos[id]
	return ok, nil
}

func (m *MockTodoStore) Get(ctx context.Context, id int64) (models.Todo, error) {
	if m.err != nil {
		return models.Todo{}, m.err
	}
	t, ok := m.todos[id]
	if !ok {
		return models.Todo{}, models.ErrNotFound
	}
	return t, nil
}

func (m *MockTodoStore) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	if m.err != nil {
		return models.Todo{}, m.err
	}
	if m.vanishOnUpdate {
		delete(m.todos, id)
	}
	t, ok := m.todos[id]
	if !ok {
		return models.Todo{}, models.ErrNotFound
	}
	if patch.Title.Set {
		t.Title = patch.Title.Value
	}
	if patch.Description.Set {
		t.Description = patch.Description.Value
	}
	if patch.Status.Set {
		t.Status = patch.Status.Value
	}
	t.UpdatedAt = m.tick()
	m.todos[id] = t
	return t, nil
}

func (m *MockTodoStore) Delete(ctx context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.todos[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.todos, id)
	return nil
}

func setupTodoHandler() (*handlers.TodoHandler, *MockTodoStore) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := NewMockTodoStore()
	return handlers.NewTodoHandler(store, logger), store
}

type todoBody struct {
	Message     string        `json:"message"`
	Todo        models.Todo   `json:"todo"`
	DeletedTodo models.Todo   `json:"deletedTodo"`
	Todos       []models.Todo `json:"todos"`
	Pagination  struct {
		Total   int64 `json:"total"`
		Limit   int   `json:"limit"`
		Offset  int   `json:"offset"`
		HasMore bool  `json:"hasMore"`
	} `json:"pagination"`
	Error string `json:"error"`
}

func decode(t *testing.T, resp handlers.Response) todoBody {
	t.Helper()
	var body todoBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body), resp.Body)
	return body
}

func create(t *testing.T, h *handlers.TodoHandler, body string) handlers.Response {
	t.Helper()
	return h.Create(context.Background(), handlers.Request{Body: body})
}

func TestCreateTodo(t *testing.T) {
	h, store := setupTodoHandler()

	resp := create(t, h, `{"title":"  Buy milk  ","description":"2 liters"}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Todo created successfully", body.Message)
	assert.Equal(t, "Buy milk", body.Todo.Title)
	assert.Equal(t, models.StatusPending, body.Todo.Status)
	require.NotNil(t, body.Todo.Description)
	assert.Equal(t, "2 liters", *body.Todo.Description)
	assert.Equal(t, int64(1), body.Todo.ID)
	assert.Equal(t, 1, store.schemaCalls)
}

func TestCreateTodoWithStatus(t *testing.T) {
	h, _ := setupTodoHandler()

	resp := create(t, h, `{"title":"Ship it","status":"in_progress"}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.StatusInProgress, decode(t, resp).Todo.Status)
}

func TestCreateTodoEmptyDescriptionIsNull(t *testing.T) {
	h, _ := setupTodoHandler()

	resp := create(t, h, `{"title":"Ship it","description":""}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Body, `"description":null`)
}

func TestCreateTodoValidation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantError   string
		wantMessage string
	}{
		{"malformed json", `{"title":`, "Invalid JSON in request body", ""},
		{"json array", `["title"]`, "Invalid JSON in request body", ""},
		{"json null", `null`, "Invalid JSON in request body", "request body must be a JSON object"},
		{"empty body", ``, "Validation error", "Title is required and must be a non-empty string"},
		{"missing title", `{"description":"x"}`, "Validation error", "Title is required and must be a non-empty string"},
		{"blank title", `{"title":"   "}`, "Validation error", "Title is required and must be a non-empty string"},
		{"numeric title", `{"title":42}`, "Validation error", "Title is required and must be a non-empty string"},
		{"null title", `{"title":null}`, "Validation error", "Title is required and must be a non-empty string"},
		{"unknown status", `{"title":"x","status":"done"}`, "Validation error", "Status must be one of: pending, in_progress, completed"},
		{"empty status", `{"title":"x","status":""}`, "Validation error", "Status must be one of: pending, in_progress, completed"},
		{"numeric description", `{"title":"x","description":7}`, "Validation error", "Description must be a string or null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := setupTodoHandler()

			resp := create(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body handlers.ErrorBody
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.Equal(t, tt.wantError, body.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			} else {
				assert.NotEmpty(t, body.Message)
			}
			assert.Empty(t, store.todos, "nothing may be inserted")
		})
	}
}

func TestCreateTodoStoreFailure(t *testing.T) {
	h, store := setupTodoHandler()
	store.err = &database.QueryError{Statement: "INSERT", Err: errors.New("relation does not exist")}

	resp := create(t, h, `{"title":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body handlers.ErrorBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, "query failed: relation does not exist", body.Message)
}

func TestCreateTodoConnectionFailure(t *testing.T) {
	h, store := setupTodoHandler()
	store.schemaErr = &database.ConnectionError{Op: "configure", Err: database.ErrMissingEndpoint}

	resp := create(t, h, `{"title":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body, "DSQL_CLUSTER_ENDPOINT")
}

func TestResponsesCarryFixedHeaders(t *testing.T) {
	h, _ := setupTodoHandler()

	for _, resp := range []handlers.Response{
		create(t, h, `{"title":"x"}`),
		create(t, h, `not json`),
		h.List(context.Background(), handlers.Request{}),
		h.Delete(context.Background(), handlers.Request{ID: "404"}),
	} {
		assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
		assert.Equal(t, "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token", resp.Headers["Access-Control-Allow-Headers"])
		assert.Equal(t, "GET,POST,PUT,DELETE,OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
		assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	}
}

func TestListTodosPagination(t *testing.T) {
	h, store := setupTodoHandler()
	for _, title := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusCreated, create(t, h, `{"title":"`+title+`"}`).StatusCode)
	}

	resp := h.List(context.Background(), handlers.Request{Query: handlers.Query{Limit: "1", Offset: "0"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Len(t, body.Todos, 1)
	assert.Equal(t, "c", body.Todos[0].Title, "newest first")
	assert.Equal(t, int64(3), body.Pagination.Total)
	assert.Equal(t, 1, body.Pagination.Limit)
	assert.Equal(t, 0, body.Pagination.Offset)
	assert.True(t, body.Pagination.HasMore)
	assert.Equal(t, 4, store.schemaCalls)
}

func TestListTodosLastPage(t *testing.T) {
	h, _ := setupTodoHandler()
	for _, title := range []string{"a", "b", "c"} {
		create(t, h, `{"title":"`+title+`"}`)
	}

	body := decode(t, h.List(context.Background(), handlers.Request{Query: handlers.Query{Limit: "2", Offset: "2"}}))

	require.Len(t, body.Todos, 1)
	assert.Equal(t, "a", body.Todos[0].Title)
	assert.False(t, body.Pagination.HasMore)
}

func TestListTodosDefaults(t *testing.T) {
	tests := []struct {
		name       string
		query      handlers.Query
		wantLimit  int
		wantOffset int
	}{
		{"absent", handlers.Query{}, 50, 0},
		{"non-numeric", handlers.Query{Limit: "abc", Offset: "xyz"}, 50, 0},
		{"zero", handlers.Query{Limit: "0", Offset: "0"}, 50, 0},
		{"negative", handlers.Query{Limit: "-5", Offset: "-3"}, 50, 0},
		{"explicit", handlers.Query{Limit: "10", Offset: "20"}, 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTodoHandler()

			body := decode(t, h.List(context.Background(), handlers.Request{Query: tt.query}))

			assert.Equal(t, tt.wantLimit, body.Pagination.Limit)
			assert.Equal(t, tt.wantOffset, body.Pagination.Offset)
		})
	}
}

func TestListTodosEmptyIsArray(t *testing.T) {
	h, _ := setupTodoHandler()

	resp := h.List(context.Background(), handlers.Request{})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"todos":[]`)
}

func TestListTodosFilteredIncludesCreatedOnce(t *testing.T) {
	h, _ := setupTodoHandler()
	create(t, h, `{"title":"other","status":"pending"}`)
	created := decode(t, create(t, h, `{"title":"mine","status":"completed"}`)).Todo

	body := decode(t, h.List(context.Background(), handlers.Request{Query: handlers.Query{Status: "completed"}}))

	count := 0
	for _, todo := range body.Todos {
		assert.Equal(t, models.StatusCompleted, todo.Status)
		if todo.ID == created.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(1), body.Pagination.Total)
}

func TestListTodosStoreFailure(t *testing.T) {
	h, store := setupTodoHandler()
	store.err = errors.New("boom")

	resp := h.List(context.Background(), handlers.Request{})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUpdateTodo(t *testing.T) {
	h, _ := setupTodoHandler()
	created := decode(t, create(t, h, `{"title":"draft","description":"old"}`)).Todo

	resp := h.Update(context.Background(), handlers.Request{
		ID:   "1",
		Body: `{"title":"  final  ","status":"completed"}`,
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Todo updated successfully", body.Message)
	assert.Equal(t, "final", body.Todo.Title)
	assert.Equal(t, models.StatusCompleted, body.Todo.Status)
	require.NotNil(t, body.Todo.Description)
	assert.Equal(t, "old", *body.Todo.Description, "untouched fields keep their value")
	assert.True(t, body.Todo.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, body.Todo.CreatedAt.Equal(created.CreatedAt))
}

func TestUpdateTodoClearsDescription(t *testing.T) {
	h, _ := setupTodoHandler()
	create(t, h, `{"title":"x","description":"old"}`)

	resp := h.Update(context.Background(), handlers.Request{ID: "1", Body: `{"description":null}`})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode(t, resp).Todo.Description)
}

func TestUpdateTodoValidation(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		body        string
		wantError   string
		wantMessage string
	}{
		{"missing id", "", `{"title":"x"}`, "Missing todo ID", "Todo ID is required in the path"},
		{"non-numeric id", "abc", `{"title":"x"}`, "Invalid todo ID", "Todo ID must be a positive integer"},
		{"zero id", "0", `{"title":"x"}`, "Invalid todo ID", "Todo ID must be a positive integer"},
		{"negative id", "-1", `{"title":"x"}`, "Invalid todo ID", "Todo ID must be a positive integer"},
		{"trailing garbage", "12abc", `{"title":"x"}`, "Invalid todo ID", "Todo ID must be a positive integer"},
		{"id checked before body", "abc", `not json`, "Invalid todo ID", "Todo ID must be a positive integer"},
		{"malformed json", "1", `{`, "Invalid JSON in request body", ""},
		{"no fields", "1", `{}`, "Validation error", "At least one field (title, description, status) must be provided"},
		{"only unknown fields", "1", `{"priority":"high"}`, "Validation error", "At least one field (title, description, status) must be provided"},
		{"bad status", "1", `{"status":"archived"}`, "Validation error", "Status must be one of: pending, in_progress, completed"},
		{"status checked before title", "1", `{"status":"archived","title":""}`, "Validation error", "Status must be one of: pending, in_progress, completed"},
		{"blank title", "1", `{"title":"  "}`, "Validation error", "Title must be a non-empty string"},
		{"non-string title", "1", `{"title":false}`, "Validation error", "Title must be a non-empty string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := setupTodoHandler()
			create(t, h, `{"title":"original"}`)

			resp := h.Update(context.Background(), handlers.Request{ID: tt.id, Body: tt.body})

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body handlers.ErrorBody
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.Equal(t, tt.wantError, body.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
			assert.Equal(t, "original", store.todos[1].Title)
		})
	}
}

func TestUpdateTodoNotFound(t *testing.T) {
	h, store := setupTodoHandler()
	create(t, h, `{"title":"keep"}`)
	before := store.todos[1]

	resp := h.Update(context.Background(), handlers.Request{ID: "999999", Body: `{"title":"x"}`})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body handlers.ErrorBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "Todo not found", body.Error)
	assert.Equal(t, "Todo with ID 999999 does not exist", body.Message)
	assert.Equal(t, before, store.todos[1])
	assert.Len(t, store.todos, 1)
}

func TestUpdateTodoVanishesBeforeUpdate(t *testing.T) {
	h, store := setupTodoHandler()
	create(t, h, `{"title":"x"}`)
	store.vanishOnUpdate = true

	resp := h.Update(context.Background(), handlers.Request{ID: "1", Body: `{"title":"y"}`})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTodo(t *testing.T) {
	h, _ := setupTodoHandler()
	create(t, h, `{"title":"keep"}`)
	doomed := decode(t, create(t, h, `{"title":"remove me"}`)).Todo

	resp := h.Delete(context.Background(), handlers.Request{ID: "2"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Todo deleted successfully", body.Message)
	assert.Equal(t, doomed.ID, body.DeletedTodo.ID)
	assert.Equal(t, "remove me", body.DeletedTodo.Title)

	list := decode(t, h.List(context.Background(), handlers.Request{}))
	for _, todo := range list.Todos {
		assert.NotEqual(t, doomed.ID, todo.ID)
	}
	assert.Equal(t, int64(1), list.Pagination.Total)
}

func TestDeleteTodoErrors(t *testing.T) {
	h, _ := setupTodoHandler()

	assert.Equal(t, http.StatusBadRequest, h.Delete(context.Background(), handlers.Request{}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, h.Delete(context.Background(), handlers.Request{ID: "x"}).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.Delete(context.Background(), handlers.Request{ID: "7"}).StatusCode)
}

func TestLookup(t *testing.T) {
	h, _ := setupTodoHandler()

	for _, name := range []string{"create", "list", "update", "delete"} {
		fn, ok := h.Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, fn, name)
	}

	_, ok := h.Lookup("get")
	assert.False(t, ok)
}
