package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/metrics"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=ledger

// Tx is the slice of an open unit of work the Balance Service writes through.
// The caller owns the transaction and decides when it commits.
type Tx interface {
	// LockBalance locks the user row until the transaction ends and returns
	// the cached balance.
	LockBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	// InsertEntry assigns ID, Seq and CreatedAt.
	InsertEntry(ctx context.Context, e *Entry) error
	FindEntry(ctx context.Context, direction Direction, reference string) (*Entry, error)
}

type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	// ListEntries returns the newest entries first.
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*Entry, error)
	SummarizeEntries(ctx context.Context, userID uuid.UUID) (Summary, error)
}

// Summary aggregates every entry of one user.
type Summary struct {
	Count            int
	Sum              decimal.Decimal // signed
	LastBalanceAfter decimal.Decimal // zero when Count is 0
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Change is a single signed balance mutation.
type Change struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Direction Direction
	Reason    string
	Reference string
	Actor     actor.Actor
}

// ValidAmount reports whether a is a usable credit amount.
func ValidAmount(a decimal.Decimal) bool {
	return a.IsPositive() && a.Equal(a.Round(2))
}

// ApplyChange locks the user's balance inside tx, appends one entry and
// updates the cached balance to match it. A debit that would leave the
// balance negative fails with ErrInsufficientFunds and writes nothing.
func (s *Service) ApplyChange(ctx context.Context, tx Tx, c Change) (decimal.Decimal, error) {
	if !ValidAmount(c.Amount) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, c.Amount)
	}

	if !c.Direction.Valid() {
		return decimal.Zero, fmt.Errorf("%w: direction %q", ErrInvalidChange, c.Direction)
	}

	if strings.TrimSpace(c.Reason) == "" {
		return decimal.Zero, fmt.Errorf("%w: reason is required", ErrInvalidChange)
	}

	before, err := tx.LockBalance(ctx, c.UserID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("locking balance: %w", err)
	}

	if c.Reference != "" {
		_, err := tx.FindEntry(ctx, c.Direction, c.Reference)
		if err == nil {
			return decimal.Zero, fmt.Errorf("%w: %s %s", ErrDuplicateReference, c.Direction, c.Reference)
		}

		if !errors.Is(err, ErrEntryNotFound) {
			return decimal.Zero, fmt.Errorf("checking reference: %w", err)
		}
	}

	after := before.Add(c.Amount)
	if c.Direction == DirectionDebit {
		after = before.Sub(c.Amount)
	}

	if after.IsNegative() {
		metrics.InsufficientFunds.Inc()
		return decimal.Zero, fmt.Errorf("%w: balance %s, debit %s",
			ErrInsufficientFunds, before.StringFixed(2), c.Amount.StringFixed(2))
	}

	entry := &Entry{
		UserID:       c.UserID,
		Direction:    c.Direction,
		Amount:       c.Amount,
		BalanceAfter: after,
		Reason:       c.Reason,
		Reference:    c.Reference,
		Actor:        c.Actor,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return decimal.Zero, fmt.Errorf("inserting ledger entry: %w", err)
	}

	if err := tx.SetBalance(ctx, c.UserID, after); err != nil {
		return decimal.Zero, fmt.Errorf("updating cached balance: %w", err)
	}

	metrics.LedgerEntries.WithLabelValues(string(c.Direction), c.Reason).Inc()

	return after, nil
}

func (s *Service) CreateUser(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidChange, email)
	}

	u := &User{Email: email, CreditBalance: decimal.Zero}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	return u.CreditBalance, nil
}

func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*Entry, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	return s.repo.ListEntries(ctx, userID, limit)
}

// Reconcile recomputes the user's balance from the ledger and compares it
// with the cached column.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (Reconciliation, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}

	sum, err := s.repo.SummarizeEntries(ctx, userID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("summarizing ledger: %w", err)
	}

	return Reconciliation{
		UserID:       userID,
		Cached:       u.CreditBalance,
		LedgerSum:    sum.Sum,
		LastSnapshot: sum.LastBalanceAfter,
		Entries:      sum.Count,
	}, nil
}

func (s *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	out := make([]Reconciliation, 0, len(users))

	for _, u := range users {
		r, err := s.Reconcile(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("reconciling %s: %w", u.ID, err)
		}

		out = append(out, r)
	}

	return out, nil
}
