// Package memory is an in-process store with the transactional behaviour of
// the Postgres store: a transaction holds the store exclusively until it
// commits, and a rollback restores the state it started from.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/store"
)

var _ store.Backend = (*Store)(nil)

type Store struct {
	// sem is held by one transaction, or one read, at a time.
	sem chan struct{}
	st  *state
}

type state struct {
	users    map[uuid.UUID]*ledger.User
	entries  []*ledger.Entry
	orders   map[uuid.UUID]*order.Order
	orderIDs []uuid.UUID // insertion order
	auditLog []*audit.Record
	entrySeq int64
}

func New() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		st: &state{
			users:  make(map[uuid.UUID]*ledger.User),
			orders: make(map[uuid.UUID]*order.Order),
		},
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

// clone copies everything a transaction may modify. Entries and audit
// records are immutable once written, so their pointers are shared.
func (st *state) clone() *state {
	users := make(map[uuid.UUID]*ledger.User, len(st.users))
	for id, u := range st.users {
		c := *u
		users[id] = &c
	}

	orders := make(map[uuid.UUID]*order.Order, len(st.orders))
	for id, o := range st.orders {
		orders[id] = copyOrder(o)
	}

	return &state{
		users:    users,
		entries:  slices.Clone(st.entries),
		orders:   orders,
		orderIDs: slices.Clone(st.orderIDs),
		auditLog: slices.Clone(st.auditLog),
		entrySeq: st.entrySeq,
	}
}

func copyOrder(o *order.Order) *order.Order {
	c := *o

	if o.LabelID != nil {
		id := *o.LabelID
		c.LabelID = &id
	}

	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}

	return &c
}

func now() time.Time {
	return time.Now().UTC()
}

// Ledger repository

func (s *Store) CreateUser(ctx context.Context, u *ledger.User) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	for _, existing := range s.st.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: %s", ledger.ErrUserExists, u.Email)
		}
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	c := *u
	s.st.users[u.ID] = &c

	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	u, ok := s.st.users[id]
	if !ok {
		return nil, ledger.ErrUserNotFound
	}

	c := *u

	return &c, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*ledger.User, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out := make([]*ledger.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		c := *u
		out = append(out, &c)
	}

	slices.SortFunc(out, func(a, b *ledger.User) int { return strings.Compare(a.Email, b.Email) })

	return out, nil
}

func (s *Store) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*ledger.Entry, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var out []*ledger.Entry

	for i := len(s.st.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e := s.st.entries[i]; e.UserID == userID {
			c := *e
			out = append(out, &c)
		}
	}

	return out, nil
}

func (s *Store) SummarizeEntries(ctx context.Context, userID uuid.UUID) (ledger.Summary, error) {
	if err := s.acquire(ctx); err != nil {
		return ledger.Summary{}, err
	}
	defer s.release()

	sum := ledger.Summary{Sum: decimal.Zero, LastBalanceAfter: decimal.Zero}

	for _, e := range s.st.entries {
		if e.UserID != userID {
			continue
		}

		sum.Count++
		sum.Sum = sum.Sum.Add(e.Signed())
		sum.LastBalanceAfter = e.BalanceAfter
	}

	return sum, nil
}

// Order repository

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	o, ok := s.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}

	return copyOrder(o), nil
}

func (s *Store) ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var out []*order.Order

	for i := len(s.st.orderIDs) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}

		o := s.st.orders[s.st.orderIDs[i]]

		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}

		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}

		if filter.PaymentStatus != nil && o.PaymentStatus != *filter.PaymentStatus {
			continue
		}

		out = append(out, copyOrder(o))
	}

	return out, nil
}

// Audit repository

func (s *Store) ListAudit(ctx context.Context, filter audit.ListFilter) ([]*audit.Record, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var out []*audit.Record

	for i := len(s.st.auditLog) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}

		r := s.st.auditLog[i]

		if filter.Action != nil && r.Action != *filter.Action {
			continue
		}

		if filter.TargetID != "" && r.TargetID != filter.TargetID {
			continue
		}

		c := *r
		c.Payload = maps.Clone(r.Payload)
		out = append(out, &c)
	}

	return out, nil
}

// Transactions

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
	if err := s.acquire(ctx); err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}

	return &tx{s: s, snapshot: s.st.clone()}, nil
}
