package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PasswordFunc returns the credential for a new physical connection.
type PasswordFunc func(ctx context.Context) (string, error)

// Opener opens a database handle and verifies it is reachable.
type Opener func(ctx context.Context, cfg *Config, password PasswordFunc, gormConfig *gorm.Config) (*gorm.DB, error)

// OpenPostgres connects through pgx so that every new pooled connection asks
// for a fresh password instead of reusing the one the pool was created with.
func OpenPostgres(ctx context.Context, cfg *Config, password PasswordFunc, gormConfig *gorm.Config) (*gorm.DB, error) {
	connConfig, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	connector := stdlib.GetConnector(*connConfig, stdlib.OptionBeforeConnect(
		func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := password(ctx)
			if err != nil {
				return err
			}
			cc.Password = token
			return nil
		},
	))

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm handle: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
