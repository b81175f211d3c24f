package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_ApplyChange(t *testing.T) {
	userID := uuid.New()
	orderRef := ledger.OrderReference(uuid.New())

	type testCase struct {
		name        string
		change      ledger.Change
		setupMock   func(m *ledger.MockTx)
		wantBalance string
		wantErr     error
	}

	tests := []testCase{
		{
			name: "Credit",
			change: ledger.Change{
				UserID: userID, Amount: dec("5.00"), Direction: ledger.DirectionCredit,
				Reason: ledger.ReasonTopUp, Actor: actor.System,
			},
			setupMock: func(m *ledger.MockTx) {
				m.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("1.25"), nil)
				m.EXPECT().
					InsertEntry(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
						assert.Equal(t, ledger.DirectionCredit, e.Direction)
						assert.Equal(t, "6.25", e.BalanceAfter.StringFixed(2))
						e.ID = uuid.New()
						e.CreatedAt = time.Now()
						return nil
					})
				m.EXPECT().
					SetBalance(gomock.Any(), userID, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, b decimal.Decimal) error {
						assert.Equal(t, "6.25", b.StringFixed(2))
						return nil
					})
			},
			wantBalance: "6.25",
		},
		{
			name: "Debit with reference",
			change: ledger.Change{
				UserID: userID, Amount: dec("0.35"), Direction: ledger.DirectionDebit,
				Reason: "scan_label", Reference: orderRef, Actor: actor.System,
			},
			setupMock: func(m *ledger.MockTx) {
				m.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("0.35"), nil)
				m.EXPECT().
					FindEntry(gomock.Any(), ledger.DirectionDebit, orderRef).
					Return(nil, ledger.ErrEntryNotFound)
				m.EXPECT().InsertEntry(gomock.Any(), gomock.Any()).Return(nil)
				m.EXPECT().SetBalance(gomock.Any(), userID, gomock.Any()).Return(nil)
			},
			wantBalance: "0.00",
		},
		{
			name: "Insufficient funds writes nothing",
			change: ledger.Change{
				UserID: userID, Amount: dec("0.35"), Direction: ledger.DirectionDebit,
				Reason: "scan_label", Actor: actor.System,
			},
			setupMock: func(m *ledger.MockTx) {
				m.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("0.34"), nil)
			},
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name: "Duplicate reference",
			change: ledger.Change{
				UserID: userID, Amount: dec("0.35"), Direction: ledger.DirectionDebit,
				Reason: "scan_label", Reference: orderRef, Actor: actor.System,
			},
			setupMock: func(m *ledger.MockTx) {
				m.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("10"), nil)
				m.EXPECT().
					FindEntry(gomock.Any(), ledger.DirectionDebit, orderRef).
					Return(&ledger.Entry{Reference: orderRef}, nil)
			},
			wantErr: ledger.ErrDuplicateReference,
		},
		{
			name: "Zero amount",
			change: ledger.Change{
				UserID: userID, Amount: decimal.Zero, Direction: ledger.DirectionCredit, Reason: ledger.ReasonTopUp,
			},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name: "Negative amount",
			change: ledger.Change{
				UserID: userID, Amount: dec("-1"), Direction: ledger.DirectionCredit, Reason: ledger.ReasonTopUp,
			},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name: "Sub-cent amount",
			change: ledger.Change{
				UserID: userID, Amount: dec("0.001"), Direction: ledger.DirectionCredit, Reason: ledger.ReasonTopUp,
			},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name: "Unknown direction",
			change: ledger.Change{
				UserID: userID, Amount: dec("1"), Direction: "sideways", Reason: ledger.ReasonTopUp,
			},
			wantErr: ledger.ErrInvalidChange,
		},
		{
			name: "Missing reason",
			change: ledger.Change{
				UserID: userID, Amount: dec("1"), Direction: ledger.DirectionCredit,
			},
			wantErr: ledger.ErrInvalidChange,
		},
		{
			name: "Unknown user",
			change: ledger.Change{
				UserID: userID, Amount: dec("1"), Direction: ledger.DirectionCredit, Reason: ledger.ReasonTopUp,
			},
			setupMock: func(m *ledger.MockTx) {
				m.EXPECT().LockBalance(gomock.Any(), userID).Return(decimal.Zero, ledger.ErrUserNotFound)
			},
			wantErr: ledger.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			tx := ledger.NewMockTx(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(tx)
			}

			svc := ledger.NewService(ledger.NewMockRepository(ctrl))
			got, err := svc.ApplyChange(context.Background(), tx, tt.change)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, got.StringFixed(2))
		})
	}
}

func TestService_ApplyChange_InsertFailureSkipsBalanceUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	tx := ledger.NewMockTx(ctrl)
	tx.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("3"), nil)
	tx.EXPECT().InsertEntry(gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	svc := ledger.NewService(ledger.NewMockRepository(ctrl))
	_, err := svc.ApplyChange(context.Background(), tx, ledger.Change{
		UserID: userID, Amount: dec("1"), Direction: ledger.DirectionDebit, Reason: "other",
	})

	assert.Error(t, err)
}

func TestService_Reconcile(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		cached         string
		summary        ledger.Summary
		wantConsistent bool
	}{
		{
			name:           "No entries",
			cached:         "0",
			summary:        ledger.Summary{Sum: decimal.Zero, LastBalanceAfter: decimal.Zero},
			wantConsistent: true,
		},
		{
			name:           "Matches",
			cached:         "4.65",
			summary:        ledger.Summary{Count: 2, Sum: dec("4.65"), LastBalanceAfter: dec("4.65")},
			wantConsistent: true,
		},
		{
			name:           "Cached drifted",
			cached:         "5.00",
			summary:        ledger.Summary{Count: 2, Sum: dec("4.65"), LastBalanceAfter: dec("4.65")},
			wantConsistent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			repo.EXPECT().GetUser(gomock.Any(), userID).Return(&ledger.User{ID: userID, CreditBalance: dec(tt.cached)}, nil)
			repo.EXPECT().SummarizeEntries(gomock.Any(), userID).Return(tt.summary, nil)

			got, err := ledger.NewService(repo).Reconcile(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConsistent, got.Consistent())
			assert.Equal(t, tt.summary.Count, got.Entries)
		})
	}
}

func TestService_History(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "Default", limit: 0, wantLimit: 50},
		{name: "Explicit", limit: 10, wantLimit: 10},
		{name: "Capped", limit: 10_000, wantLimit: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			repo.EXPECT().GetUser(gomock.Any(), userID).Return(&ledger.User{ID: userID}, nil)
			repo.EXPECT().ListEntries(gomock.Any(), userID, tt.wantLimit).Return([]*ledger.Entry{{}}, nil)

			got, err := ledger.NewService(repo).History(context.Background(), userID, tt.limit)
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestService_CreateUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := ledger.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *ledger.User) error {
			assert.Equal(t, "ops@example.com", u.Email)
			assert.True(t, u.CreditBalance.IsZero())
			u.ID = uuid.New()
			return nil
		})

	svc := ledger.NewService(repo)

	u, err := svc.CreateUser(context.Background(), "  Ops@Example.com ")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, u.ID)

	_, err = svc.CreateUser(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, ledger.ErrInvalidChange)
}

func TestReferences(t *testing.T) {
	id := uuid.MustParse("7f1d6f0e-8a51-4c1e-9a57-3d2b9c4a1e20")

	assert.Equal(t, "order:7f1d6f0e-8a51-4c1e-9a57-3d2b9c4a1e20", ledger.OrderReference(id))
	assert.Equal(t, "refund:order:7f1d6f0e-8a51-4c1e-9a57-3d2b9c4a1e20", ledger.RefundReference(id))
	assert.Equal(t, "topup:stripe-42", ledger.TopUpReference("stripe-42"))
}
