package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/paymentapi/internal/client/migrations"
	"github.com/dmitrijs2005/paymentapi/internal/client/repositories/session"
	"github.com/dmitrijs2005/paymentapi/internal/filex"
	"github.com/pressly/goose/v3"
)

type Repositories struct {
	DB      *sql.DB
	Session session.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the local SQLite file at path, creating its directory
// if needed, and brings the schema up to date.
func InitDatabase(ctx context.Context, path string) (*Repositories, error) {
	dsn, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single writer keeps SQLite from reporting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:      db,
		Session: session.NewSQLiteRepository(db),
	}, nil
}
