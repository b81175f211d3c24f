// Package postgres implements the ledger, credit, order and audit
// repositories on PostgreSQL through database/sql and pgx.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var (
	_ ledger.Repository = (*Store)(nil)
	_ credit.Repository = (*Store)(nil)
	_ order.Repository  = (*Store)(nil)
	_ audit.Repository  = (*Store)(nil)
	_ store.Backend     = (*Store)(nil)
)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	return nil
}

func (s *Store) Begin(ctx context.Context) (order.Tx, error) {
	t, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Store) BeginLedger(ctx context.Context) (credit.Tx, error) {
	t, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Store) begin(ctx context.Context) (*tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}

	return &tx{tx: sqlTx}, nil
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Commit() error   { return t.tx.Commit() }
func (t *tx) Rollback() error { return t.tx.Rollback() }

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// constraintErrors maps named constraints to the domain error they express.
var constraintErrors = map[string]error{
	"users_email_key":               ledger.ErrUserExists,
	"ledger_entries_reference_uniq": ledger.ErrDuplicateReference,
	"ledger_entries_user_fk":        ledger.ErrUserNotFound,
	"orders_user_fk":                ledger.ErrUserNotFound,
	"orders_active_tracking_uniq":   order.ErrDuplicateTracking,
	"orders_design_no_tracking":     order.ErrInvalidInput,
	"users_balance_non_negative":    ledger.ErrInsufficientFunds,
}

// translate turns constraint violations into domain errors so that raw
// database codes never leave the store.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	if domainErr, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return fmt.Errorf("%w: %s", domainErr, pgErr.Detail)
	}

	if pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
	}

	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
