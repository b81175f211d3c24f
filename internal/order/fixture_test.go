package order_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
	"github.com/MrJamesThe3rd/labelhub/internal/store/memory"
)

var admin = actor.Admin(uuid.MustParse("00000000-0000-0000-0000-00000000ad01"))

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	t       *testing.T
	store   *memory.Store
	ledger  *ledger.Service
	credits *credit.Service
	svc     *order.Service

	mu   sync.Mutex
	jobs []order.ScanJob
}

func newFixture(t *testing.T, opts ...order.Option) *fixture {
	t.Helper()

	return newFixtureWithPrices(t, pricing.NewTable(pricing.Defaults()), opts...)
}

func newFixtureWithPrices(t *testing.T, prices pricing.Provider, opts ...order.Option) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{t: t, store: memory.New()}

	pub := order.NewMockPublisher(ctrl)
	pub.EXPECT().
		PublishScanJob(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, job order.ScanJob) error {
			f.mu.Lock()
			defer f.mu.Unlock()

			f.jobs = append(f.jobs, job)

			return nil
		}).
		AnyTimes()

	f.ledger = ledger.NewService(f.store)
	f.credits = credit.NewService(f.ledger, prices, f.store)
	f.svc = order.NewService(f.store, f.credits, pub, opts...)

	return f
}

func (f *fixture) user(balance string) uuid.UUID {
	f.t.Helper()

	u, err := f.ledger.CreateUser(context.Background(), uuid.NewString()+"@example.com")
	require.NoError(f.t, err)

	if amount := dec(balance); amount.IsPositive() {
		_, err := f.credits.Adjust(context.Background(), credit.AdjustParams{
			UserID:    u.ID,
			Amount:    amount,
			TopUp:     true,
			Reference: uuid.NewString(),
			Actor:     actor.System,
		})
		require.NoError(f.t, err)
	}

	return u.ID
}

func (f *fixture) create(userID uuid.UUID, t order.Type, subtype order.DesignSubtype, code string) *order.Order {
	f.t.Helper()

	o, err := f.svc.Create(context.Background(), order.CreateParams{
		UserID:        userID,
		Type:          t,
		DesignSubtype: subtype,
		TrackingCode:  code,
		Carrier:       "usps",
	})
	require.NoError(f.t, err)

	return o
}

func (f *fixture) get(id uuid.UUID) *order.Order {
	f.t.Helper()

	o, err := f.svc.Get(context.Background(), id)
	require.NoError(f.t, err)

	return o
}

func (f *fixture) balance(userID uuid.UUID) string {
	f.t.Helper()

	b, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(f.t, err)

	return b.StringFixed(2)
}

// debits counts debit entries carrying the order's reference.
func (f *fixture) debits(userID, orderID uuid.UUID) int {
	f.t.Helper()

	entries, err := f.store.ListEntries(context.Background(), userID, 10_000)
	require.NoError(f.t, err)

	n := 0

	for _, e := range entries {
		if e.Direction == ledger.DirectionDebit && e.Reference == ledger.OrderReference(orderID) {
			n++
		}
	}

	return n
}

func (f *fixture) requireConsistent(userID uuid.UUID) {
	f.t.Helper()

	r, err := f.ledger.Reconcile(context.Background(), userID)
	require.NoError(f.t, err)
	require.Truef(f.t, r.Consistent(), "cached %s, ledger sum %s, last snapshot %s",
		r.Cached, r.LedgerSum, r.LastSnapshot)
}

func (f *fixture) publishedJobs() []order.ScanJob {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]order.ScanJob(nil), f.jobs...)
}
