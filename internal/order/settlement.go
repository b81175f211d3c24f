package order

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/metrics"
)

// StartProcessing charges the order if it has not been charged yet and moves
// it to processing. Calling it again on a processing, paid order changes
// nothing.
func (s *Service) StartProcessing(ctx context.Context, by actor.Actor, orderID uuid.UUID) (*Order, error) {
	var (
		o   *Order
		job *ScanJob
	)

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, job, err = s.startTx(ctx, tx, by, orderID)

		return err
	})
	if err != nil {
		return nil, err
	}

	if job != nil {
		s.publish(ctx, []ScanJob{*job})
	}

	return o, nil
}

func (s *Service) startTx(ctx context.Context, tx Tx, by actor.Actor, orderID uuid.UUID) (*Order, *ScanJob, error) {
	o, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if o.Status != StatusPending && o.Status != StatusProcessing {
		return nil, nil, fmt.Errorf("%w: status is %s", ErrNotStartable, o.Status)
	}

	if trackingPolicyFor(o.Kind) == trackingUnique {
		n, err := tx.CountTracking(ctx, o.Kind.Type(), o.TrackingCode, o.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("checking tracking code: %w", err)
		}

		if n > 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateTracking, o.TrackingCode)
		}
	}

	charge, charged, err := s.credits.ExistingCharge(ctx, tx, o.ID)
	if err != nil {
		return nil, nil, err
	}

	before := *o
	chargedNow := false

	var price decimal.Decimal

	switch {
	case charged:
		price = charge.Amount
		if o.PaidAt == nil {
			o.PaidAt = &charge.CreatedAt
		}
	case o.Paid():
		// paid through an override without a ledger debit; nothing to charge
		price, err = s.priceOf(o.Kind)
		if err != nil {
			return nil, nil, err
		}
	default:
		key, err := ServiceKeyFor(o.Kind)
		if err != nil {
			return nil, nil, err
		}

		price, err = s.credits.Consume(ctx, tx, o.UserID, key, o.ID, by)
		if err != nil {
			return nil, nil, fmt.Errorf("charging order %s: %w", o.ID, err)
		}

		now := s.now()
		o.PaidAt = &now
		chargedNow = true
	}

	o.PaymentStatus = PaymentPaid
	o.Status = StatusProcessing
	o.TotalCost = price

	if before.Status == o.Status && before.PaymentStatus == o.PaymentStatus && before.TotalCost.Equal(o.TotalCost) {
		return o, nil, nil
	}

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("updating order: %w", err)
	}

	err = tx.AppendAudit(ctx, &audit.Record{
		Actor:    by,
		Action:   audit.ActionOrderStart,
		TargetID: o.ID.String(),
		Payload: map[string]any{
			"previous_status": string(before.Status),
			"charged":         chargedNow,
			"total_cost":      o.TotalCost.StringFixed(2),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("writing audit record: %w", err)
	}

	metrics.OrderTransitions.WithLabelValues("start").Inc()

	var job *ScanJob

	if before.Status == StatusPending && startsOnPayment(o.Kind) {
		j := newScanJob(o)
		job = &j
	}

	return o, job, nil
}

// SaveResult stores the deliverable of a processing or completed order.
func (s *Service) SaveResult(ctx context.Context, by actor.Actor, orderID uuid.UUID, resultURL string) (*Order, error) {
	resultURL = strings.TrimSpace(resultURL)
	if _, err := url.ParseRequestURI(resultURL); err != nil {
		return nil, fmt.Errorf("%w: result url %q", ErrInvalidInput, resultURL)
	}

	var o *Order

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.Status != StatusProcessing && o.Status != StatusCompleted {
			return fmt.Errorf("%w: cannot attach a result to a %s order", ErrInvalidTransition, o.Status)
		}

		previous := o.ResultURL
		o.ResultURL = resultURL

		if err := tx.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("updating order: %w", err)
		}

		return tx.AppendAudit(ctx, &audit.Record{
			Actor:    by,
			Action:   audit.ActionOrderResult,
			TargetID: o.ID.String(),
			Payload:  map[string]any{"result_url": resultURL, "previous_result_url": previous},
		})
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// MarkCompleted moves a processing order to completed once its completion
// gate passes.
func (s *Service) MarkCompleted(ctx context.Context, by actor.Actor, orderID uuid.UUID) (*Order, error) {
	var o *Order

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		return s.completeTx(ctx, tx, by, o)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

func (s *Service) completeTx(ctx context.Context, tx Tx, by actor.Actor, o *Order) error {
	if o.Status != StatusProcessing {
		return fmt.Errorf("%w: cannot complete a %s order", ErrInvalidTransition, o.Status)
	}

	if !o.Paid() {
		return fmt.Errorf("%w: cannot complete an unpaid order", ErrInvalidTransition)
	}

	if err := checkCompletable(o); err != nil {
		return err
	}

	o.Status = StatusCompleted

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	metrics.OrderTransitions.WithLabelValues("complete").Inc()

	return tx.AppendAudit(ctx, &audit.Record{
		Actor:    by,
		Action:   audit.ActionOrderComplete,
		TargetID: o.ID.String(),
		Payload:  map[string]any{"result_url": o.ResultURL},
	})
}

// Complete saves resultURL, when given, and then completes the order. The two
// steps commit separately.
func (s *Service) Complete(ctx context.Context, by actor.Actor, orderID uuid.UUID, resultURL string) (*Order, error) {
	if strings.TrimSpace(resultURL) != "" {
		if _, err := s.SaveResult(ctx, by, orderID, resultURL); err != nil {
			return nil, err
		}
	}

	return s.MarkCompleted(ctx, by, orderID)
}

type FailParams struct {
	Note   string
	Refund bool
}

type FailResult struct {
	Order    *Order
	Refunded decimal.Decimal // zero when nothing was credited back
}

// MarkFailed fails a processing order, or a completed one as a correction.
func (s *Service) MarkFailed(ctx context.Context, by actor.Actor, orderID uuid.UUID, params FailParams) (*FailResult, error) {
	var res *FailResult

	err := s.inTx(ctx, func(tx Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		res, err = s.failTx(ctx, tx, by, o, params)

		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Service) failTx(ctx context.Context, tx Tx, by actor.Actor, o *Order, params FailParams) (*FailResult, error) {
	if o.Status != StatusProcessing && o.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: cannot fail a %s order", ErrInvalidTransition, o.Status)
	}

	previous := o.Status
	o.Status = StatusFailed
	o.AdminNote = strings.TrimSpace(params.Note)

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("updating order: %w", err)
	}

	refunded := decimal.Zero

	if params.Refund {
		amount, err := s.refundAmount(ctx, tx, o)
		if err != nil {
			return nil, err
		}

		if amount.IsPositive() {
			ok, err := s.credits.Refund(ctx, tx, o.UserID, o.ID, amount, by)
			if err != nil {
				return nil, fmt.Errorf("refunding order %s: %w", o.ID, err)
			}

			if ok {
				refunded = amount
			}
		}
	}

	err := tx.AppendAudit(ctx, &audit.Record{
		Actor:    by,
		Action:   audit.ActionOrderFail,
		TargetID: o.ID.String(),
		Payload: map[string]any{
			"previous_status":  string(previous),
			"note":             o.AdminNote,
			"refund_requested": params.Refund,
			"refund_policy":    string(s.refundPolicy),
			"refunded":         refunded.StringFixed(2),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("writing audit record: %w", err)
	}

	metrics.OrderTransitions.WithLabelValues("fail").Inc()

	return &FailResult{Order: o, Refunded: refunded}, nil
}

func (s *Service) refundAmount(ctx context.Context, tx Tx, o *Order) (decimal.Decimal, error) {
	if s.refundPolicy == RefundTotalCost {
		return o.TotalCost, nil
	}

	charge, found, err := s.credits.ExistingCharge(ctx, tx, o.ID)
	if err != nil {
		return decimal.Zero, err
	}

	if !found {
		return decimal.Zero, nil
	}

	return charge.Amount, nil
}

// SetPaymentStatus overrides the payment status without touching the ledger.
// It always succeeds for an existing order and is audited as a manual override.
func (s *Service) SetPaymentStatus(ctx context.Context, by actor.Actor, orderID uuid.UUID, status PaymentStatus, note string) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalidInput, status)
	}

	var o *Order

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		_, charged, err := s.credits.ExistingCharge(ctx, tx, o.ID)
		if err != nil {
			return err
		}

		previous := o.PaymentStatus
		o.PaymentStatus = status

		switch {
		case status == PaymentUnpaid:
			o.PaidAt = nil
		case o.PaidAt == nil:
			now := s.now()
			o.PaidAt = &now
		}

		if err := tx.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("updating order: %w", err)
		}

		return tx.AppendAudit(ctx, &audit.Record{
			Actor:    by,
			Action:   audit.ActionOrderPaymentOverride,
			TargetID: o.ID.String(),
			Payload: map[string]any{
				"manual_override": true,
				"from":            string(previous),
				"to":              string(status),
				"note":            strings.TrimSpace(note),
				"ledger_debit":    charged,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// MarkScanSuccess completes a tracking order whose scan finished. A redelivered
// result for an already completed order is a no-op.
func (s *Service) MarkScanSuccess(ctx context.Context, orderID uuid.UUID, resultURL string) (*Order, error) {
	var o *Order

	err := s.inTx(ctx, func(tx Tx) error {
		var err error

		o, err = s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.Status == StatusCompleted {
			return nil
		}

		if u := strings.TrimSpace(resultURL); u != "" {
			o.ResultURL = u
		}

		return s.completeTx(ctx, tx, actor.System, o)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// MarkScanFailure fails a tracking order whose scan failed and refunds it
// under the configured policy. A redelivered failure is a no-op.
func (s *Service) MarkScanFailure(ctx context.Context, orderID uuid.UUID, reason string) (*FailResult, error) {
	var res *FailResult

	err := s.inTx(ctx, func(tx Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.Status == StatusFailed {
			res = &FailResult{Order: o, Refunded: decimal.Zero}
			return nil
		}

		res, err = s.failTx(ctx, tx, actor.System, o, FailParams{Note: "scan failed: " + reason, Refund: true})

		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ItemError is the failure of one order in a bulk operation.
type ItemError struct {
	OrderID uuid.UUID
	Err     error
}

type BulkResult struct {
	Succeeded []uuid.UUID
	Failed    []ItemError
}

// BulkStartProcessing starts each order in its own transaction so that one
// bad order does not block the rest.
func (s *Service) BulkStartProcessing(ctx context.Context, by actor.Actor, orderIDs []uuid.UUID) (*BulkResult, error) {
	return s.bulk(ctx, by, audit.ActionOrderBulkStart, orderIDs, func(id uuid.UUID) error {
		_, err := s.StartProcessing(ctx, by, id)
		return err
	})
}

func (s *Service) BulkMarkFailed(ctx context.Context, by actor.Actor, orderIDs []uuid.UUID, params FailParams) (*BulkResult, error) {
	return s.bulk(ctx, by, audit.ActionOrderBulkFail, orderIDs, func(id uuid.UUID) error {
		_, err := s.MarkFailed(ctx, by, id, params)
		return err
	})
}

func (s *Service) bulk(ctx context.Context, by actor.Actor, action audit.Action, orderIDs []uuid.UUID, fn func(uuid.UUID) error) (*BulkResult, error) {
	res := &BulkResult{Succeeded: []uuid.UUID{}, Failed: []ItemError{}}

	for _, id := range dedupe(orderIDs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := fn(id); err != nil {
			res.Failed = append(res.Failed, ItemError{OrderID: id, Err: err})
			continue
		}

		res.Succeeded = append(res.Succeeded, id)
	}

	failed := make(map[string]string, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.OrderID.String()] = f.Err.Error()
	}

	err := s.inTx(ctx, func(tx Tx) error {
		return tx.AppendAudit(ctx, &audit.Record{
			Actor:    by,
			Action:   action,
			TargetID: "",
			Payload:  map[string]any{"succeeded": idStrings(res.Succeeded), "failed": failed},
		})
	})
	if err != nil {
		return res, fmt.Errorf("writing bulk audit record: %w", err)
	}

	return res, nil
}
