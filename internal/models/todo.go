package models

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when no todo has the requested id.
var ErrNotFound = errors.New("todo not found")

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var ValidStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// StatusList renders the accepted statuses for validation messages.
func StatusList() string {
	names := make([]string, len(ValidStatuses))
	for i, s := range ValidStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

type Todo struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description *string   `json:"description"`
	Status      Status    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Todo) TableName() string {
	return "todos"
}

// NewTodo is a validated creation request.
type NewTodo struct {
	Title       string
	Description *string
	Status      Status
}

const (
	DefaultLimit  = 50
	DefaultOffset = 0
)

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

func NewPagination(total int64, limit, offset int) Pagination {
	return Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset) < total && int64(limit) < total-int64(offset),
	}
}
