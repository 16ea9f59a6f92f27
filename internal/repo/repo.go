package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
)

// Repository is the full persistence surface. Consumers depend on the narrow stores.
type Repository interface {
	UserStore
	CatalogStore
	TeamStore
	ShopStore
	PaymentStore
	CertificateStore
	JobStore
	LockStore
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
	MigrationStatus(migrationsDir string) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	if err := goose.Up(r.db.Master, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations from %s: %w", migrationsDir, err)
	}
	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	if err := goose.Down(r.db.Master, migrationsDir); err != nil {
		return fmt.Errorf("failed to roll back migration from %s: %w", migrationsDir, err)
	}
	r.log.Info().Msgf("Last migration rolled back from %s", migrationsDir)
	return nil
}

func (r *repository) MigrationStatus(migrationsDir string) error {
	return goose.Status(r.db.Master, migrationsDir)
}

// withTx runs fn inside a transaction on the master. fn's error rolls back.
func (r *repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
