// Package storage opens the local SQLite database, applies migrations and
// bundles the repositories used by the services.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/formulus/formulus-go/internal/migrations"
	"github.com/formulus/formulus-go/internal/repositories/metadata"
	"github.com/formulus/formulus-go/internal/repositories/observations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Storage holds the open database and the repositories bound to it.
type Storage struct {
	DB           *sql.DB
	Observations observations.Repository
	Metadata     metadata.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{
		DB:           db,
		Observations: observations.NewSQLiteRepository(db),
		Metadata:     metadata.NewSQLiteRepository(db),
	}, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.DB.Close()
}
