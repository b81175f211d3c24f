package order_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

func TestService_PayOrders_StopsAtFirstShortfall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.user("2.50")

	// 1.00, 1.00, 4.00 and 0.50: D alone is still affordable after A and B.
	a := f.create(userID, order.TypeOther, "", "")
	b := f.create(userID, order.TypeOther, "", "")
	c := f.create(userID, order.TypeDesign, order.Design3D, "")
	d := f.create(userID, order.TypeEmptyPackage, "", "EP-STOP")

	res, err := f.svc.PayOrders(ctx, userID, []uuid.UUID{a.ID, b.ID, c.ID, d.ID})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, res.PaidOrderIDs)
	assert.Equal(t, []uuid.UUID{c.ID, d.ID}, res.UnpaidOrderIDs)

	assert.Equal(t, order.PaymentUnpaid, f.get(d.ID).PaymentStatus)
	assert.Equal(t, "0.50", f.balance(userID))
	assert.Zero(t, f.debits(userID, c.ID))
	assert.Zero(t, f.debits(userID, d.ID))
	f.requireConsistent(userID)
}

func TestService_PayOrders(t *testing.T) {
	ctx := context.Background()

	type testCase struct {
		name       string
		balance    string
		build      func(f *fixture, userID uuid.UUID) (ids []uuid.UUID, wantPaid, wantUnpaid []uuid.UUID)
		wantJobs   int
		wantRemain string
	}

	tests := []testCase{
		{
			name:    "Foreign and duplicate ids are dropped",
			balance: "5.00",
			build: func(f *fixture, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				mine := f.create(userID, order.TypeOther, "", "")
				theirs := f.create(f.user("5.00"), order.TypeOther, "", "")

				return []uuid.UUID{mine.ID, theirs.ID, mine.ID, uuid.New()},
					[]uuid.UUID{mine.ID}, []uuid.UUID{}
			},
			wantRemain: "4.00",
		},
		{
			name:    "Already paid orders count as paid without a second debit",
			balance: "1.00",
			build: func(f *fixture, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				o := f.create(userID, order.TypeOther, "", "")
				_, err := f.svc.AutoPay(context.Background(), userID, o.ID)
				require.NoError(f.t, err)

				return []uuid.UUID{o.ID}, []uuid.UUID{o.ID}, []uuid.UUID{}
			},
			wantRemain: "0.00",
		},
		{
			name:    "Completed paid order counts as paid",
			balance: "1.00",
			build: func(f *fixture, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				o := f.create(userID, order.TypeOther, "", "")
				_, err := f.svc.StartProcessing(context.Background(), admin, o.ID)
				require.NoError(f.t, err)
				_, err = f.svc.Complete(context.Background(), admin, o.ID, "https://results.example.com/done.pdf")
				require.NoError(f.t, err)

				return []uuid.UUID{o.ID}, []uuid.UUID{o.ID}, []uuid.UUID{}
			},
			wantRemain: "0.00",
		},
		{
			name:    "Failed unpaid order stays unpaid without stopping",
			balance: "1.00",
			build: func(f *fixture, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				failed := f.create(userID, order.TypeOther, "", "")
				_, err := f.svc.StartProcessing(context.Background(), admin, failed.ID)
				require.NoError(f.t, err)
				_, err = f.svc.SetPaymentStatus(context.Background(), admin, failed.ID, order.PaymentUnpaid, "correction")
				require.NoError(f.t, err)
				_, err = f.svc.MarkFailed(context.Background(), admin, failed.ID, order.FailParams{Refund: true})
				require.NoError(f.t, err)

				ok := f.create(userID, order.TypeOther, "", "")

				return []uuid.UUID{failed.ID, ok.ID}, []uuid.UUID{ok.ID}, []uuid.UUID{failed.ID}
			},
			wantRemain: "0.00",
		},
		{
			name:    "Tracking orders move to processing and enqueue a job",
			balance: "1.00",
			build: func(f *fixture, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				x := f.create(userID, order.TypeActiveTracking, "", "9400PAY1")
				y := f.create(userID, order.TypeActiveTracking, "", "9400PAY2")

				return []uuid.UUID{x.ID, y.ID}, []uuid.UUID{x.ID, y.ID}, []uuid.UUID{}
			},
			wantJobs:   2,
			wantRemain: "0.30",
		},
		{
			name:    "Unpriceable order is skipped without stopping",
			balance: "1.00",
			build: func(f *fixture, userID uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				bad := f.create(userID, order.TypeDesign, "", "")
				ok := f.create(userID, order.TypeOther, "", "")

				return []uuid.UUID{bad.ID, ok.ID}, []uuid.UUID{ok.ID}, []uuid.UUID{bad.ID}
			},
			wantRemain: "0.00",
		},
		{
			name:    "Empty request",
			balance: "1.00",
			build: func(_ *fixture, _ uuid.UUID) ([]uuid.UUID, []uuid.UUID, []uuid.UUID) {
				return nil, []uuid.UUID{}, []uuid.UUID{}
			},
			wantRemain: "1.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			userID := f.user(tt.balance)
			ids, wantPaid, wantUnpaid := tt.build(f, userID)

			res, err := f.svc.PayOrders(ctx, userID, ids)
			require.NoError(t, err)

			assert.Equal(t, wantPaid, res.PaidOrderIDs)
			assert.Equal(t, wantUnpaid, res.UnpaidOrderIDs)
			assert.Len(t, f.publishedJobs(), tt.wantJobs)
			assert.Equal(t, tt.wantRemain, f.balance(userID))

			for _, id := range wantPaid {
				assert.Equal(t, 1, f.debits(userID, id))
			}

			f.requireConsistent(userID)
		})
	}
}

// Random interleavings of every balance-changing operation must keep the
// cached balance equal to the ledger.
func TestLedgerConsistency_RandomOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.WithRefundPolicy(order.RefundLedger))
	rng := rand.New(rand.NewPCG(7, 11))

	users := []uuid.UUID{f.user("3.00"), f.user("0"), f.user("12.00")}
	types := []order.Type{order.TypeActiveTracking, order.TypeEmptyPackage, order.TypeDesign, order.TypeOther}
	subtypes := []order.DesignSubtype{order.Design2D, order.Design3D, order.DesignLogo}

	var orders []*order.Order

	for i := range 300 {
		userID := users[rng.IntN(len(users))]

		switch op := rng.IntN(7); {
		case op == 0 || len(orders) == 0:
			typ := types[rng.IntN(len(types))]
			o, err := f.svc.Create(ctx, order.CreateParams{
				UserID:        userID,
				Type:          typ,
				DesignSubtype: subtypes[rng.IntN(len(subtypes))],
				TrackingCode:  uuid.NewString()[:12],
			})
			require.NoError(t, err)

			orders = append(orders, o)
		case op == 1:
			_, err := f.credits.Adjust(ctx, credit.AdjustParams{
				UserID:    userID,
				Amount:    dec("1.15"),
				TopUp:     true,
				Reference: uuid.NewString(),
				Actor:     actor.System,
			})
			require.NoError(t, err)
		case op == 2:
			o := orders[rng.IntN(len(orders))]
			_, err := f.svc.AutoPay(ctx, o.UserID, o.ID)
			require.NoError(t, err)
		case op == 3:
			o := orders[rng.IntN(len(orders))]
			_, _ = f.svc.StartProcessing(ctx, admin, o.ID)
		case op == 4:
			o := orders[rng.IntN(len(orders))]
			_, _ = f.svc.MarkFailed(ctx, admin, o.ID, order.FailParams{Refund: rng.IntN(2) == 0})
		case op == 5:
			var ids []uuid.UUID
			for range 4 {
				ids = append(ids, orders[rng.IntN(len(orders))].ID)
			}

			_, err := f.svc.PayOrders(ctx, userID, ids)
			require.NoError(t, err)
		default:
			o := orders[rng.IntN(len(orders))]
			_, _ = f.svc.Complete(ctx, admin, o.ID, "https://files.example.com/"+o.ID.String())
		}

		if i%50 == 0 {
			for _, u := range users {
				f.requireConsistent(u)
			}
		}
	}

	for _, u := range users {
		f.requireConsistent(u)
	}

	for _, o := range orders {
		assert.LessOrEqual(t, f.debits(o.UserID, o.ID), 1)
	}
}
