package credit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_TryConsume(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	type testCase struct {
		name      string
		setupMock func(p *pricing.MockProvider, tx *ledger.MockTx)
		wantOK    bool
		wantErr   error
	}

	tests := []testCase{
		{
			name: "Charged",
			setupMock: func(p *pricing.MockProvider, tx *ledger.MockTx) {
				p.EXPECT().Price(pricing.ServiceScanLabel).Return(dec("0.35"), nil)
				tx.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("1.00"), nil)
				tx.EXPECT().
					FindEntry(gomock.Any(), ledger.DirectionDebit, ledger.OrderReference(orderID)).
					Return(nil, ledger.ErrEntryNotFound)
				tx.EXPECT().
					InsertEntry(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
						assert.Equal(t, string(pricing.ServiceScanLabel), e.Reason)
						assert.Equal(t, ledger.OrderReference(orderID), e.Reference)
						return nil
					})
				tx.EXPECT().SetBalance(gomock.Any(), userID, gomock.Any()).Return(nil)
			},
			wantOK: true,
		},
		{
			name: "Insufficient funds is not an error",
			setupMock: func(p *pricing.MockProvider, tx *ledger.MockTx) {
				p.EXPECT().Price(pricing.ServiceScanLabel).Return(dec("0.35"), nil)
				tx.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("0.10"), nil)
				tx.EXPECT().
					FindEntry(gomock.Any(), ledger.DirectionDebit, gomock.Any()).
					Return(nil, ledger.ErrEntryNotFound)
			},
			wantOK: false,
		},
		{
			name: "Unknown service",
			setupMock: func(p *pricing.MockProvider, _ *ledger.MockTx) {
				p.EXPECT().Price(pricing.ServiceScanLabel).Return(decimal.Zero, pricing.ErrUnknownService)
			},
			wantErr: pricing.ErrUnknownService,
		},
		{
			name: "Storage failure propagates",
			setupMock: func(p *pricing.MockProvider, tx *ledger.MockTx) {
				p.EXPECT().Price(pricing.ServiceScanLabel).Return(dec("0.35"), nil)
				tx.EXPECT().LockBalance(gomock.Any(), userID).Return(decimal.Zero, errors.New("connection reset"))
			},
			wantErr: errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			prices := pricing.NewMockProvider(ctrl)
			tx := ledger.NewMockTx(ctrl)
			tt.setupMock(prices, tx)

			svc := credit.NewService(ledger.NewService(nil), prices, nil)
			price, ok, err := svc.TryConsume(context.Background(), tx, userID, pricing.ServiceScanLabel, orderID, actor.System)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				assert.False(t, ok)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, "0.35", price.StringFixed(2))
		})
	}
}

func TestService_Consume_InsufficientFundsIsHardFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	prices := pricing.NewMockProvider(ctrl)
	prices.EXPECT().Price(pricing.ServiceDesign3D).Return(dec("4.00"), nil)

	tx := ledger.NewMockTx(ctrl)
	tx.EXPECT().LockBalance(gomock.Any(), userID).Return(dec("3.99"), nil)
	tx.EXPECT().FindEntry(gomock.Any(), ledger.DirectionDebit, gomock.Any()).Return(nil, ledger.ErrEntryNotFound)

	svc := credit.NewService(ledger.NewService(nil), prices, nil)
	_, err := svc.Consume(context.Background(), tx, userID, pricing.ServiceDesign3D, uuid.New(), actor.System)

	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestService_ExistingCharge(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name      string
		found     *ledger.Entry
		findErr   error
		wantFound bool
		wantErr   bool
	}{
		{name: "Found", found: &ledger.Entry{Amount: dec("0.35")}, wantFound: true},
		{name: "Not found", findErr: ledger.ErrEntryNotFound},
		{name: "Lookup failure", findErr: errors.New("db error"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			tx := ledger.NewMockTx(ctrl)
			tx.EXPECT().
				FindEntry(gomock.Any(), ledger.DirectionDebit, ledger.OrderReference(orderID)).
				Return(tt.found, tt.findErr)

			svc := credit.NewService(ledger.NewService(nil), pricing.NewMockProvider(ctrl), nil)
			e, found, err := svc.ExistingCharge(context.Background(), tx, orderID)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.found, e)
		})
	}
}

func TestService_Refund_SkipsWhenAlreadyRefunded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orderID := uuid.New()
	tx := ledger.NewMockTx(ctrl)
	tx.EXPECT().
		FindEntry(gomock.Any(), ledger.DirectionCredit, ledger.RefundReference(orderID)).
		Return(&ledger.Entry{}, nil)

	svc := credit.NewService(ledger.NewService(nil), pricing.NewMockProvider(ctrl), nil)
	refunded, err := svc.Refund(context.Background(), tx, uuid.New(), orderID, dec("0.35"), actor.System)

	require.NoError(t, err)
	assert.False(t, refunded)
}
