package order_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
)

func TestService_Create(t *testing.T) {
	type testCase struct {
		name      string
		params    func(userID uuid.UUID) order.CreateParams
		wantErr   error
		checkFunc func(t *testing.T, o *order.Order)
	}

	tests := []testCase{
		{
			name: "Active tracking starts pending and unpaid with its price",
			params: func(userID uuid.UUID) order.CreateParams {
				return order.CreateParams{UserID: userID, Type: order.TypeActiveTracking, TrackingCode: " 9400abc ", Carrier: "usps"}
			},
			checkFunc: func(t *testing.T, o *order.Order) {
				assert.Equal(t, order.StatusPending, o.Status)
				assert.Equal(t, order.PaymentUnpaid, o.PaymentStatus)
				assert.Equal(t, "9400ABC", o.TrackingCode)
				assert.Equal(t, "0.35", o.TotalCost.StringFixed(2))
			},
		},
		{
			name: "Design tracking code is stripped",
			params: func(userID uuid.UUID) order.CreateParams {
				return order.CreateParams{UserID: userID, Type: order.TypeDesign, DesignSubtype: order.Design3D, TrackingCode: "9400XYZ"}
			},
			checkFunc: func(t *testing.T, o *order.Order) {
				assert.Empty(t, o.TrackingCode)
				assert.Equal(t, order.Design{Subtype: order.Design3D}, o.Kind)
				assert.Equal(t, "4.00", o.TotalCost.StringFixed(2))
			},
		},
		{
			name: "Design without subtype is accepted unpriced",
			params: func(userID uuid.UUID) order.CreateParams {
				return order.CreateParams{UserID: userID, Type: order.TypeDesign}
			},
			checkFunc: func(t *testing.T, o *order.Order) {
				assert.True(t, o.TotalCost.IsZero())
			},
		},
		{
			name: "Active tracking needs a code",
			params: func(userID uuid.UUID) order.CreateParams {
				return order.CreateParams{UserID: userID, Type: order.TypeActiveTracking, TrackingCode: "  "}
			},
			wantErr: order.ErrInvalidInput,
		},
		{
			name: "Unknown type",
			params: func(userID uuid.UUID) order.CreateParams {
				return order.CreateParams{UserID: userID, Type: "pallet"}
			},
			wantErr: order.ErrInvalidInput,
		},
		{
			name: "Unknown design subtype",
			params: func(userID uuid.UUID) order.CreateParams {
				return order.CreateParams{UserID: userID, Type: order.TypeDesign, DesignSubtype: "4d"}
			},
			wantErr: order.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			userID := f.user("0")

			got, err := f.svc.Create(context.Background(), tt.params(userID))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)

			if tt.checkFunc != nil {
				tt.checkFunc(t, got)
			}
		})
	}
}

func TestService_Create_TrackingUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.user("0")

	f.create(userID, order.TypeActiveTracking, "", "9400ABC")

	_, err := f.svc.Create(ctx, order.CreateParams{UserID: userID, Type: order.TypeActiveTracking, TrackingCode: "9400abc"})
	assert.ErrorIs(t, err, order.ErrDuplicateTracking)

	first := f.create(userID, order.TypeEmptyPackage, "", "EP-1")
	assert.Empty(t, first.Warning)

	second := f.create(userID, order.TypeEmptyPackage, "", "ep-1")
	assert.NotEmpty(t, second.Warning)

	other1 := f.create(userID, order.TypeOther, "", "OT-1")
	other2 := f.create(userID, order.TypeOther, "", "OT-1")
	assert.Empty(t, other1.Warning)
	assert.Empty(t, other2.Warning)
}

// A user with 5.00 imports 20 tracking labels priced at 0.35 each.
func TestScenario_TwentyLabelsAutoPay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.user("5.00")

	var paid, unpaid []*order.Order

	for i := range 20 {
		o := f.create(userID, order.TypeActiveTracking, "", fmt.Sprintf("9400%04d", i))

		ok, err := f.svc.AutoPay(ctx, userID, o.ID)
		require.NoError(t, err)

		if ok {
			paid = append(paid, o)
		} else {
			unpaid = append(unpaid, o)
		}
	}

	require.Len(t, paid, 14)
	require.Len(t, unpaid, 6)

	for _, o := range paid {
		got := f.get(o.ID)
		assert.Equal(t, order.StatusProcessing, got.Status)
		assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
		assert.NotNil(t, got.PaidAt)
	}

	for _, o := range unpaid {
		got := f.get(o.ID)
		assert.Equal(t, order.StatusPending, got.Status)
		assert.Equal(t, order.PaymentUnpaid, got.PaymentStatus)
	}

	assert.Equal(t, "0.10", f.balance(userID))
	assert.Len(t, f.publishedJobs(), 14)
	f.requireConsistent(userID)
}

func TestService_AutoPay_NonTrackingStaysPending(t *testing.T) {
	f := newFixture(t)
	userID := f.user("1.00")
	o := f.create(userID, order.TypeEmptyPackage, "", "EP-9")

	ok, err := f.svc.AutoPay(context.Background(), userID, o.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got := f.get(o.ID)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	assert.Empty(t, f.publishedJobs())
	assert.Equal(t, "0.50", f.balance(userID))
}

func TestService_AutoPay_OtherUsersOrder(t *testing.T) {
	f := newFixture(t)
	owner := f.user("1.00")
	stranger := f.user("1.00")
	o := f.create(owner, order.TypeOther, "", "")

	_, err := f.svc.AutoPay(context.Background(), stranger, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Equal(t, "1.00", f.balance(owner))
	assert.Equal(t, "1.00", f.balance(stranger))
}

func TestService_AutoPay_Repeated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.user("1.00")
	o := f.create(userID, order.TypeActiveTracking, "", "9400REP")

	for range 3 {
		ok, err := f.svc.AutoPay(ctx, userID, o.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	assert.Equal(t, 1, f.debits(userID, o.ID))
	assert.Equal(t, "0.65", f.balance(userID))
	assert.Len(t, f.publishedJobs(), 1)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user("0")
	b := f.user("0")

	f.create(a, order.TypeOther, "", "")
	f.create(a, order.TypeOther, "", "")
	f.create(b, order.TypeOther, "", "")

	got, err := f.svc.List(ctx, order.ListFilter{UserID: &a})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := f.svc.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.GetForUser(ctx, b, got[0].ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestServiceKeyFor(t *testing.T) {
	tests := []struct {
		kind    order.Kind
		want    pricing.ServiceKey
		wantErr bool
	}{
		{kind: order.ActiveTracking{}, want: pricing.ServiceScanLabel},
		{kind: order.EmptyPackage{}, want: pricing.ServiceEmptyPackage},
		{kind: order.Design{Subtype: order.Design2D}, want: pricing.ServiceDesign2D},
		{kind: order.Design{Subtype: order.Design3D}, want: pricing.ServiceDesign3D},
		{kind: order.Design{Subtype: order.DesignLogo}, want: pricing.ServiceDesignLogo},
		{kind: order.Design{}, wantErr: true},
		{kind: order.Design{Subtype: "mural"}, wantErr: true},
		{kind: order.Other{}, want: pricing.ServiceOther},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T/%s", tt.kind, order.SubtypeOf(tt.kind)), func(t *testing.T) {
			got, err := order.ServiceKeyFor(tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, order.ErrInvalidInput)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRefundPolicy(t *testing.T) {
	p, err := order.ParseRefundPolicy(" Total_Cost ")
	require.NoError(t, err)
	assert.Equal(t, order.RefundTotalCost, p)

	_, err = order.ParseRefundPolicy("generous")
	assert.Error(t, err)
}
