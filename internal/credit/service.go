// Package credit prices services and charges them against the ledger.
package credit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
)

var ErrInvalidAdjustment = errors.New("invalid credit adjustment")

type Repository interface {
	BeginLedger(ctx context.Context) (Tx, error)
}

// Tx is a standalone ledger transaction used for operator adjustments.
type Tx interface {
	ledger.Tx
	audit.Appender
	Commit() error
	Rollback() error
}

type Service struct {
	balances *ledger.Service
	prices   pricing.Provider
	repo     Repository
}

func NewService(balances *ledger.Service, prices pricing.Provider, repo Repository) *Service {
	return &Service{balances: balances, prices: prices, repo: repo}
}

func (s *Service) CostFor(key pricing.ServiceKey) (decimal.Decimal, error) {
	return s.prices.Price(key)
}

// Consume debits the current price of key for orderID. Insufficient funds is
// returned as ledger.ErrInsufficientFunds and the caller must roll back.
func (s *Service) Consume(ctx context.Context, tx ledger.Tx, userID uuid.UUID, key pricing.ServiceKey, orderID uuid.UUID, by actor.Actor) (decimal.Decimal, error) {
	price, err := s.CostFor(key)
	if err != nil {
		return decimal.Zero, err
	}

	_, err = s.balances.ApplyChange(ctx, tx, ledger.Change{
		UserID:    userID,
		Amount:    price,
		Direction: ledger.DirectionDebit,
		Reason:    string(key),
		Reference: ledger.OrderReference(orderID),
		Actor:     by,
	})
	if err != nil {
		return price, err
	}

	return price, nil
}

// TryConsume is Consume that reports insufficient funds as ok=false instead
// of an error. Nothing is written in that case, so tx stays usable.
func (s *Service) TryConsume(ctx context.Context, tx ledger.Tx, userID uuid.UUID, key pricing.ServiceKey, orderID uuid.UUID, by actor.Actor) (decimal.Decimal, bool, error) {
	price, err := s.Consume(ctx, tx, userID, key, orderID, by)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return price, false, nil
	}

	if err != nil {
		return price, false, err
	}

	return price, true, nil
}

// ExistingCharge finds the debit already recorded for orderID, if any.
func (s *Service) ExistingCharge(ctx context.Context, tx ledger.Tx, orderID uuid.UUID) (*ledger.Entry, bool, error) {
	e, err := tx.FindEntry(ctx, ledger.DirectionDebit, ledger.OrderReference(orderID))
	if errors.Is(err, ledger.ErrEntryNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("looking up charge: %w", err)
	}

	return e, true, nil
}

// Refund credits amount back for orderID. A second refund of the same order
// is a no-op and reports false.
func (s *Service) Refund(ctx context.Context, tx ledger.Tx, userID, orderID uuid.UUID, amount decimal.Decimal, by actor.Actor) (bool, error) {
	ref := ledger.RefundReference(orderID)

	_, err := tx.FindEntry(ctx, ledger.DirectionCredit, ref)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, ledger.ErrEntryNotFound) {
		return false, fmt.Errorf("looking up refund: %w", err)
	}

	_, err = s.balances.ApplyChange(ctx, tx, ledger.Change{
		UserID:    userID,
		Amount:    amount,
		Direction: ledger.DirectionCredit,
		Reason:    ledger.ReasonRefund,
		Reference: ref,
		Actor:     by,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

type AdjustParams struct {
	UserID uuid.UUID
	// Amount is signed: positive credits the user, negative debits.
	Amount decimal.Decimal
	// TopUp records a purchase of credits. Reference is then the external
	// payment id and is required.
	TopUp     bool
	Reference string
	Note      string
	Actor     actor.Actor
}

type AdjustResult struct {
	Balance decimal.Decimal
	// Applied is false when Reference was already used and nothing changed.
	Applied bool
}

// Adjust applies an operator credit change in its own transaction and
// records it in the audit log.
func (s *Service) Adjust(ctx context.Context, params AdjustParams) (*AdjustResult, error) {
	change, err := adjustmentChange(params)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin adjustment: %w", err)
	}
	defer tx.Rollback()

	balance, err := s.balances.ApplyChange(ctx, tx, change)
	if errors.Is(err, ledger.ErrDuplicateReference) {
		current, err := tx.LockBalance(ctx, params.UserID)
		if err != nil {
			return nil, fmt.Errorf("reading balance: %w", err)
		}

		return &AdjustResult{Balance: current}, nil
	}

	if err != nil {
		return nil, err
	}

	err = tx.AppendAudit(ctx, &audit.Record{
		Actor:    params.Actor,
		Action:   audit.ActionCreditAdjust,
		TargetID: params.UserID.String(),
		Payload: map[string]any{
			"amount":        change.Amount.StringFixed(2),
			"direction":     string(change.Direction),
			"reason":        change.Reason,
			"reference":     change.Reference,
			"note":          params.Note,
			"balance_after": balance.StringFixed(2),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("writing audit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}

	return &AdjustResult{Balance: balance, Applied: true}, nil
}

func adjustmentChange(params AdjustParams) (ledger.Change, error) {
	if params.Amount.IsZero() {
		return ledger.Change{}, fmt.Errorf("%w: amount must not be zero", ErrInvalidAdjustment)
	}

	change := ledger.Change{
		UserID:    params.UserID,
		Amount:    params.Amount.Abs(),
		Direction: ledger.DirectionCredit,
		Reason:    ledger.ReasonAdminAdjustment,
		Actor:     params.Actor,
	}

	if params.Amount.IsNegative() {
		change.Direction = ledger.DirectionDebit
	}

	ref := strings.TrimSpace(params.Reference)

	switch {
	case params.TopUp && params.Amount.IsNegative():
		return ledger.Change{}, fmt.Errorf("%w: a top-up must be positive", ErrInvalidAdjustment)
	case params.TopUp && ref == "":
		return ledger.Change{}, fmt.Errorf("%w: a top-up needs a payment reference", ErrInvalidAdjustment)
	case params.TopUp:
		change.Reason = ledger.ReasonTopUp
		change.Reference = ledger.TopUpReference(ref)
	case ref != "":
		change.Reference = "adjust:" + ref
	}

	return change, nil
}
