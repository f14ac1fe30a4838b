package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"todo-api/internal/models"
)

// Query holds the raw list parameters. An empty string means absent.
type Query struct {
	Status string
	Limit  string
	Offset string
}

// Request is the transport-neutral input to every handler.
type Request struct {
	Body      string
	ID        string
	Query     Query
	RequestID string
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

var (
	allowedHeaders = []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key", "X-Amz-Security-Token"}
	allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
)

// AllowedHeaders lists the request headers every response advertises.
func AllowedHeaders() []string {
	return append([]string(nil), allowedHeaders...)
}

func AllowedMethods() []string {
	return append([]string(nil), allowedMethods...)
}

// ResponseHeaders returns the headers attached to every response.
func ResponseHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": strings.Join(allowedHeaders, ","),
		"Access-Control-Allow-Methods": strings.Join(allowedMethods, ","),
		"Content-Type":                 "application/json",
	}
}

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ValidationError is a client mistake that maps to 400.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func invalid(detail string) *ValidationError {
	return &ValidationError{Reason: "Validation error", Detail: detail}
}

func jsonResponse(status int, payload interface{}) Response {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error","message":"failed to encode response"}`)
	}

	return Response{
		StatusCode: status,
		Headers:    ResponseHeaders(),
		Body:       string(body),
	}
}

func errorResponse(status int, reason, message string) Response {
	return jsonResponse(status, ErrorBody{Error: reason, Message: message})
}

// responseForError maps err onto the error taxonomy: validation failures are
// 400, a missing todo is 404 and everything else is 500.
func responseForError(err error, id int64) Response {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return errorResponse(http.StatusBadRequest, validationErr.Reason, validationErr.Detail)
	case errors.Is(err, models.ErrNotFound):
		return errorResponse(http.StatusNotFound, "Todo not found", fmt.Sprintf("Todo with ID %d does not exist", id))
	default:
		return errorResponse(http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
