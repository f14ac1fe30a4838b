// Package dbtest provides a database.Client backed by in-memory sqlite for
// tests in other packages.
package dbtest

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"todo-api/internal/database"
)

// OpenSQLite is a database.Opener that ignores the DSN and opens a private
// in-memory database. The pool is pinned to one connection so every statement
// sees the same data.
func OpenSQLite(ctx context.Context, cfg *database.Config, password database.PasswordFunc, gormConfig *gorm.Config) (*gorm.DB, error) {
	if _, err := password(ctx); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

// NewClient returns a connected client with the todos schema in place.
func NewClient(t *testing.T) *database.Client {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := database.DefaultConfig()
	cfg.Endpoint = "test.dsql.us-east-1.on.aws"

	client := database.NewClient(cfg, database.StaticPassword("test"),
		database.WithOpener(OpenSQLite),
		database.WithLogger(logger),
	)
	t.Cleanup(func() { client.Close() })

	if err := client.InitializeSchema(context.Background()); err != nil {
		t.Fatalf("Failed to initialize test schema: %v", err)
	}
	return client
}

// Insert adds a row with fixed timestamps so ordering and updated_at
// assertions are deterministic.
func Insert(t *testing.T, client *database.Client, title, status, createdAt string) int64 {
	t.Helper()

	ctx := context.Background()
	if _, err := client.Exec(ctx,
		"INSERT INTO todos (title, status, created_at, updated_at) VALUES (?, ?, ?, ?)",
		title, status, createdAt, createdAt,
	); err != nil {
		t.Fatalf("Failed to insert todo: %v", err)
	}

	var id int64
	if err := client.Query(ctx, &id, "SELECT MAX(id) FROM todos"); err != nil {
		t.Fatalf("Failed to read inserted id: %v", err)
	}
	return id
}
