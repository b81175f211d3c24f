package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
)

// Direction is the sign of a ledger entry.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Reasons that are not service keys. Consumption debits use the service key
// of the consumed service as their reason.
const (
	ReasonTopUp           = "topup"
	ReasonRefund          = "refund"
	ReasonAdminAdjustment = "admin_adjustment"
)

// Entry is one immutable balance change.
type Entry struct {
	ID           uuid.UUID
	Seq          int64
	UserID       uuid.UUID
	Direction    Direction
	Amount       decimal.Decimal // always positive
	BalanceAfter decimal.Decimal
	Reason       string
	Reference    string // empty when the entry carries no idempotency key
	Actor        actor.Actor
	CreatedAt    time.Time
}

// Signed returns the amount with its direction applied.
func (e *Entry) Signed() decimal.Decimal {
	if e.Direction == DirectionDebit {
		return e.Amount.Neg()
	}

	return e.Amount
}

func OrderReference(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

func RefundReference(orderID uuid.UUID) string {
	return "refund:order:" + orderID.String()
}

func TopUpReference(external string) string {
	return "topup:" + external
}

// User is the balance account of a user.
type User struct {
	ID            uuid.UUID
	Email         string
	CreditBalance decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reconciliation compares the cached balance with what the ledger says it should be.
type Reconciliation struct {
	UserID       uuid.UUID
	Cached       decimal.Decimal
	LedgerSum    decimal.Decimal
	LastSnapshot decimal.Decimal
	Entries      int
}

func (r Reconciliation) Consistent() bool {
	return r.Cached.Equal(r.LedgerSum) && r.Cached.Equal(r.LastSnapshot)
}
