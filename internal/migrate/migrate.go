// Package migrate applies embedded SQL migrations for the PostgreSQL store.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/sable-sync/migrations"
)

// Up runs all pending migrations from the embedded filesystem.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

// EnsureAccount registers account as available if it has no row yet.
// Existing rows keep their status so operators can restrict an account.
func EnsureAccount(ctx context.Context, dsn, account string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	const q = `INSERT INTO accounts (id, status) VALUES ($1, 'available') ON CONFLICT (id) DO NOTHING`
	_, err = db.ExecContext(ctx, q, account)
	return err
}
