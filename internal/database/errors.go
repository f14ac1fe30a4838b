package database

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEndpoint = errors.New("DSQL_CLUSTER_ENDPOINT environment variable is required")
	ErrMissingRegion   = errors.New("AWS region is required to sign connection tokens")
)

// ConnectionError reports that no usable connection could be established.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection failed (%s): %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError wraps a driver failure for a single statement. It is never retried.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
