package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"todo-api/internal/models"
	"todo-api/internal/services"
)

// HandlerFunc is the shape shared by the four todo operations.
type HandlerFunc func(ctx context.Context, req Request) Response

type TodoHandler struct {
	store services.TodoStore
	log   *logrus.Entry
}

func NewTodoHandler(store services.TodoStore, logger *logrus.Logger) *TodoHandler {
	return &TodoHandler{
		store: store,
		log:   logger.WithField("component", "handlers"),
	}
}

// Lookup returns the operation registered under name: create, list, update
// or delete.
func (h *TodoHandler) Lookup(name string) (HandlerFunc, bool) {
	switch name {
	case "create":
		return h.Create, true
	case "list":
		return h.List, true
	case "update":
		return h.Update, true
	case "delete":
		return h.Delete, true
	default:
		return nil, false
	}
}

type todoResult struct {
	Message string      `json:"message"`
	Todo    models.Todo `json:"todo"`
}

type deleteResult struct {
	Message     string      `json:"message"`
	DeletedTodo models.Todo `json:"deletedTodo"`
}

type listResult struct {
	Todos      []models.Todo     `json:"todos"`
	Pagination models.Pagination `json:"pagination"`
}

func (h *TodoHandler) logger(req Request, handler string) *logrus.Entry {
	entry := h.log.WithField("handler", handler)
	if req.RequestID != "" {
		entry = entry.WithField("request_id", req.RequestID)
	}
	return entry
}

func (h *TodoHandler) fail(log *logrus.Entry, err error, id int64) Response {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		log.WithField("reason", validationErr.Detail).Info("Rejected invalid request")
	case errors.Is(err, models.ErrNotFound):
		log.WithField("id", id).Info("Todo not found")
	default:
		log.WithError(err).Error("Request failed")
	}
	return responseForError(err, id)
}

func (h *TodoHandler) Create(ctx context.Context, req Request) Response {
	log := h.logger(req, "create")
	log.WithField("body", req.Body).Debug("Handling request")

	fields, err := decodeObject(req.Body)
	if err != nil {
		return h.fail(log, err, 0)
	}

	todo, err := parseNewTodo(fields)
	if err != nil {
		return h.fail(log, err, 0)
	}

	if err := h.store.InitializeSchema(ctx); err != nil {
		return h.fail(log, err, 0)
	}

	created, err := h.store.Create(ctx, todo)
	if err != nil {
		return h.fail(log, err, 0)
	}

	log.WithField("id", created.ID).Info("Created todo")
	return jsonResponse(http.StatusCreated, todoResult{
		Message: "Todo created successfully",
		Todo:    created,
	})
}

func (h *TodoHandler) List(ctx context.Context, req Request) Response {
	log := h.logger(req, "list")
	filter := parseListFilter(req.Query)
	log.WithFields(logrus.Fields{
		"status": filter.Status,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	}).Debug("Handling request")

	if err := h.store.InitializeSchema(ctx); err != nil {
		return h.fail(log, err, 0)
	}

	todos, total, err := h.store.List(ctx, filter)
	if err != nil {
		return h.fail(log, err, 0)
	}
	if todos == nil {
		todos = []models.Todo{}
	}

	return jsonResponse(http.StatusOK, listResult{
		Todos:      todos,
		Pagination: models.NewPagination(total, filter.Limit, filter.Offset),
	})
}

func (h *TodoHandler) Update(ctx context.Context, req Request) Response {
	log := h.logger(req, "update")
	log.WithFields(logrus.Fields{"id": req.ID, "body": req.Body}).Debug("Handling request")

	id, err := parseID(req.ID)
	if err != nil {
		return h.fail(log, err, 0)
	}

	fields, err := decodeObject(req.Body)
	if err != nil {
		return h.fail(log, err, id)
	}

	patch, err := parseTodoPatch(fields)
	if err != nil {
		return h.fail(log, err, id)
	}

	exists, err := h.store.Exists(ctx, id)
	if err != nil {
		return h.fail(log, err, id)
	}
	if !exists {
		return h.fail(log, models.ErrNotFound, id)
	}

	updated, err := h.store.Update(ctx, id, patch)
	if err != nil {
		return h.fail(log, err, id)
	}

	log.WithField("id", id).Info("Updated todo")
	return jsonResponse(http.StatusOK, todoResult{
		Message: "Todo updated successfully",
		Todo:    updated,
	})
}

func (h *TodoHandler) Delete(ctx context.Context, req Request) Response {
	log := h.logger(req, "delete")
	log.WithField("id", req.ID).Debug("Handling request")

	id, err := parseID(req.ID)
	if err != nil {
		return h.fail(log, err, 0)
	}

	existing, err := h.store.Get(ctx, id)
	if err != nil {
		return h.fail(log, err, id)
	}

	if err := h.store.Delete(ctx, id); err != nil {
		return h.fail(log, err, id)
	}

	log.WithField("id", id).Info("Deleted todo")
	return jsonResponse(http.StatusOK, deleteResult{
		Message:     "Todo deleted successfully",
		DeletedTodo: existing,
	})
}
