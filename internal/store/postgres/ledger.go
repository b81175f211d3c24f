package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
)

const selectUserColumns = `id, email, credit_balance, created_at, updated_at`

func scanUser(s scanner) (*ledger.User, error) {
	var u ledger.User

	if err := s.Scan(&u.ID, &u.Email, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	return &u, nil
}

// Expected column order: id, seq, user_id, direction, amount, balance_after,
// reason, reference, actor, created_at
const selectEntryColumns = `
	id, seq, user_id, direction, amount, balance_after, reason, reference, actor, created_at
`

func scanEntry(s scanner) (*ledger.Entry, error) {
	var (
		e         ledger.Entry
		direction string
		reference sql.NullString
		by        string
	)

	if err := s.Scan(
		&e.ID, &e.Seq, &e.UserID, &direction, &e.Amount, &e.BalanceAfter,
		&e.Reason, &reference, &by, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	a, err := actor.Parse(by)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}

	e.Direction = ledger.Direction(direction)
	e.Reference = reference.String
	e.Actor = a

	return &e, nil
}

func (s *Store) CreateUser(ctx context.Context, u *ledger.User) error {
	query := `
		INSERT INTO users (email, credit_balance, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, u.Email, u.CreditBalance).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", translate(err))
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrUserNotFound
		}

		return nil, fmt.Errorf("getting user: %w", err)
	}

	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*ledger.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users ORDER BY email`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*ledger.User

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (s *Store) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*ledger.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Store) SummarizeEntries(ctx context.Context, userID uuid.UUID) (ledger.Summary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0),
			COALESCE((SELECT balance_after FROM ledger_entries WHERE user_id = $1 ORDER BY seq DESC LIMIT 1), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`

	var sum ledger.Summary

	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&sum.Count, &sum.Sum, &sum.LastBalanceAfter); err != nil {
		return ledger.Summary{}, fmt.Errorf("summarizing entries: %w", err)
	}

	return sum, nil
}

// Ledger transaction

func (t *tx) LockBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := t.tx.QueryRowContext(ctx, `SELECT credit_balance FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ledger.ErrUserNotFound
		}

		return decimal.Zero, fmt.Errorf("locking balance: %w", err)
	}

	return balance, nil
}

func (t *tx) SetBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET credit_balance = $1, updated_at = NOW() WHERE id = $2`, balance, userID)
	if err != nil {
		return fmt.Errorf("setting balance: %w", translate(err))
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrUserNotFound
	}

	return nil
}

func (t *tx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (user_id, direction, amount, balance_after, reason, reference, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, seq, created_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		e.UserID,
		string(e.Direction),
		e.Amount,
		e.BalanceAfter,
		e.Reason,
		nullString(e.Reference),
		e.Actor.String(),
	).Scan(&e.ID, &e.Seq, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", translate(err))
	}

	return nil
}

func (t *tx) FindEntry(ctx context.Context, direction ledger.Direction, reference string) (*ledger.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM ledger_entries
		WHERE direction = $1 AND reference = $2`

	e, err := scanEntry(t.tx.QueryRowContext(ctx, query, string(direction), reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound
		}

		return nil, fmt.Errorf("finding entry: %w", err)
	}

	return e, nil
}
