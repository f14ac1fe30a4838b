package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"todo-api/internal/models"
)

var (
	errTitleRequired    = invalid("Title is required and must be a non-empty string")
	errTitleEmpty       = invalid("Title must be a non-empty string")
	errInvalidStatus    = invalid("Status must be one of: " + models.StatusList())
	errInvalidDesc      = invalid("Description must be a string or null")
	errNoUpdatableField = invalid("At least one field (title, description, status) must be provided")
)

// decodeObject parses body as a JSON object keyed by field name so callers
// can tell an absent field from one set to null. An empty body is {}.
func decodeObject(body string) (map[string]json.RawMessage, error) {
	if strings.TrimSpace(body) == "" {
		return map[string]json.RawMessage{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, &ValidationError{Reason: "Invalid JSON in request body", Detail: err.Error()}
	}
	if fields == nil {
		return nil, &ValidationError{Reason: "Invalid JSON in request body", Detail: "request body must be a JSON object"}
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeString reports false for anything that is not a JSON string,
// including null.
func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeStatus(raw json.RawMessage) (models.Status, error) {
	s, ok := decodeString(raw)
	if !ok || !models.Status(s).Valid() {
		return "", errInvalidStatus
	}
	return models.Status(s), nil
}

func decodeDescription(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	s, ok := decodeString(raw)
	if !ok {
		return nil, errInvalidDesc
	}
	return &s, nil
}

func parseNewTodo(fields map[string]json.RawMessage) (models.NewTodo, error) {
	todo := models.NewTodo{Status: models.StatusPending}

	raw, ok := fields["title"]
	if !ok {
		return todo, errTitleRequired
	}
	title, ok := decodeString(raw)
	if !ok || strings.TrimSpace(title) == "" {
		return todo, errTitleRequired
	}
	todo.Title = strings.TrimSpace(title)

	if raw, ok := fields["status"]; ok {
		status, err := decodeStatus(raw)
		if err != nil {
			return todo, err
		}
		todo.Status = status
	}

	if raw, ok := fields["description"]; ok {
		description, err := decodeDescription(raw)
		if err != nil {
			return todo, err
		}
		// empty descriptions are stored as NULL
		if description != nil && *description != "" {
			todo.Description = description
		}
	}

	return todo, nil
}

func parseTodoPatch(fields map[string]json.RawMessage) (models.TodoPatch, error) {
	var patch models.TodoPatch

	rawTitle, hasTitle := fields["title"]
	rawDesc, hasDesc := fields["description"]
	rawStatus, hasStatus := fields["status"]

	if !hasTitle && !hasDesc && !hasStatus {
		return patch, errNoUpdatableField
	}

	if hasStatus {
		status, err := decodeStatus(rawStatus)
		if err != nil {
			return patch, err
		}
		patch.Status = models.Some(status)
	}

	if hasTitle {
		title, ok := decodeString(rawTitle)
		if !ok || strings.TrimSpace(title) == "" {
			return patch, errTitleEmpty
		}
		patch.Title = models.Some(strings.TrimSpace(title))
	}

	if hasDesc {
		description, err := decodeDescription(rawDesc)
		if err != nil {
			return patch, err
		}
		patch.Description = models.Some(description)
	}

	return patch, nil
}

func parseID(raw string) (int64, error) {
	if raw == "" {
		return 0, &ValidationError{Reason: "Missing todo ID", Detail: "Todo ID is required in the path"}
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Reason: "Invalid todo ID", Detail: "Todo ID must be a positive integer"}
	}
	return id, nil
}

// parseListFilter never fails: unusable limit or offset values fall back to
// their defaults.
func parseListFilter(q Query) models.ListFilter {
	filter := models.ListFilter{
		Status: models.Status(q.Status),
		Limit:  models.DefaultLimit,
		Offset: models.DefaultOffset,
	}

	if limit, err := strconv.Atoi(q.Limit); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Offset); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter
}
