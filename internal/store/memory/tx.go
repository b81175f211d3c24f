package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

var errTxDone = errors.New("transaction already finished")

type tx struct {
	s        *Store
	snapshot *state
	done     bool
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}

	t.done = true
	t.s.release()

	return nil
}

// Rollback restores the snapshot taken at Begin. After Commit it is a no-op
// that reports errTxDone, like database/sql.
func (t *tx) Rollback() error {
	if t.done {
		return errTxDone
	}

	t.done = true
	t.s.st = t.snapshot
	t.s.release()

	return nil
}

func (t *tx) state() (*state, error) {
	if t.done {
		return nil, errTxDone
	}

	return t.s.st, nil
}

// Ledger

func (t *tx) LockBalance(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	st, err := t.state()
	if err != nil {
		return decimal.Zero, err
	}

	u, ok := st.users[userID]
	if !ok {
		return decimal.Zero, ledger.ErrUserNotFound
	}

	return u.CreditBalance, nil
}

func (t *tx) SetBalance(_ context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	st, err := t.state()
	if err != nil {
		return err
	}

	u, ok := st.users[userID]
	if !ok {
		return ledger.ErrUserNotFound
	}

	if balance.IsNegative() {
		return fmt.Errorf("negative balance %s for user %s", balance, userID)
	}

	u.CreditBalance = balance
	u.UpdatedAt = now()

	return nil
}

func (t *tx) InsertEntry(_ context.Context, e *ledger.Entry) error {
	st, err := t.state()
	if err != nil {
		return err
	}

	if _, ok := st.users[e.UserID]; !ok {
		return ledger.ErrUserNotFound
	}

	if e.Reference != "" {
		if _, found := findEntry(st, e.Direction, e.Reference); found {
			return fmt.Errorf("%w: %s %s", ledger.ErrDuplicateReference, e.Direction, e.Reference)
		}
	}

	st.entrySeq++
	e.ID = uuid.New()
	e.Seq = st.entrySeq
	e.CreatedAt = now()

	c := *e
	st.entries = append(st.entries, &c)

	return nil
}

func (t *tx) FindEntry(_ context.Context, direction ledger.Direction, reference string) (*ledger.Entry, error) {
	st, err := t.state()
	if err != nil {
		return nil, err
	}

	e, found := findEntry(st, direction, reference)
	if !found {
		return nil, ledger.ErrEntryNotFound
	}

	c := *e

	return &c, nil
}

func findEntry(st *state, direction ledger.Direction, reference string) (*ledger.Entry, bool) {
	for _, e := range st.entries {
		if e.Direction == direction && e.Reference == reference {
			return e, true
		}
	}

	return nil, false
}

// Audit

func (t *tx) AppendAudit(_ context.Context, r *audit.Record) error {
	st, err := t.state()
	if err != nil {
		return err
	}

	r.ID = uuid.New()
	r.CreatedAt = now()

	c := *r
	c.Payload = maps.Clone(r.Payload)
	st.auditLog = append(st.auditLog, &c)

	return nil
}

// Orders

func (t *tx) InsertOrder(_ context.Context, o *order.Order) error {
	st, err := t.state()
	if err != nil {
		return err
	}

	if _, ok := st.users[o.UserID]; !ok {
		return ledger.ErrUserNotFound
	}

	if err := checkOrderConstraints(st, o); err != nil {
		return err
	}

	o.ID = uuid.New()
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt

	st.orders[o.ID] = copyOrder(o)
	st.orderIDs = append(st.orderIDs, o.ID)

	return nil
}

func (t *tx) LockOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	st, err := t.state()
	if err != nil {
		return nil, err
	}

	o, ok := st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}

	return copyOrder(o), nil
}

func (t *tx) LockOwnedOrders(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*order.Order, error) {
	st, err := t.state()
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*order.Order, len(ids))

	for _, id := range ids {
		if o, ok := st.orders[id]; ok && o.UserID == userID {
			out[id] = copyOrder(o)
		}
	}

	return out, nil
}

func (t *tx) UpdateOrder(_ context.Context, o *order.Order) error {
	st, err := t.state()
	if err != nil {
		return err
	}

	if _, ok := st.orders[o.ID]; !ok {
		return order.ErrNotFound
	}

	if err := checkOrderConstraints(st, o); err != nil {
		return err
	}

	o.UpdatedAt = now()
	st.orders[o.ID] = copyOrder(o)

	return nil
}

func (t *tx) CountTracking(_ context.Context, typ order.Type, code string, excludeID uuid.UUID) (int, error) {
	st, err := t.state()
	if err != nil {
		return 0, err
	}

	return countTracking(st, typ, code, excludeID), nil
}

func countTracking(st *state, typ order.Type, code string, excludeID uuid.UUID) int {
	n := 0

	for id, o := range st.orders {
		if id == excludeID || o.Status == order.StatusFailed || o.Kind.Type() != typ {
			continue
		}

		if o.TrackingCode != "" && strings.EqualFold(o.TrackingCode, code) {
			n++
		}
	}

	return n
}

// checkOrderConstraints mirrors the table constraints of the Postgres schema.
func checkOrderConstraints(st *state, o *order.Order) error {
	if o.Kind.Type() == order.TypeDesign && o.TrackingCode != "" {
		return fmt.Errorf("%w: design orders cannot carry a tracking code", order.ErrInvalidInput)
	}

	if o.Kind.Type() == order.TypeActiveTracking && o.Status != order.StatusFailed &&
		countTracking(st, order.TypeActiveTracking, o.TrackingCode, o.ID) > 0 {
		return fmt.Errorf("%w: %s", order.ErrDuplicateTracking, o.TrackingCode)
	}

	return nil
}
