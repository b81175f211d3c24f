package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/metrics"
)

type payOutcome int

const (
	payCharged payOutcome = iota
	payAlreadyPaid
	payInsufficient
	// payNotPayable covers unpaid terminal orders and orders that cannot be priced.
	payNotPayable
)

func (p payOutcome) paid() bool {
	return p == payCharged || p == payAlreadyPaid
}

// tryPay settles a locked order if the balance allows it. Insufficient funds
// is an outcome, not an error, and leaves tx usable.
func (s *Service) tryPay(ctx context.Context, tx Tx, o *Order, by actor.Actor) (payOutcome, *ScanJob, error) {
	if o.Paid() {
		return payAlreadyPaid, nil, nil
	}

	if o.Terminal() {
		return payNotPayable, nil, nil
	}

	charge, found, err := s.credits.ExistingCharge(ctx, tx, o.ID)
	if err != nil {
		return 0, nil, err
	}

	if found {
		o.PaymentStatus = PaymentPaid
		o.TotalCost = charge.Amount
		o.PaidAt = &charge.CreatedAt

		if err := tx.UpdateOrder(ctx, o); err != nil {
			return 0, nil, fmt.Errorf("updating order: %w", err)
		}

		return payAlreadyPaid, nil, nil
	}

	key, err := ServiceKeyFor(o.Kind)
	if err != nil {
		s.logger.Warn("order cannot be priced", "order_id", o.ID, "error", err)
		return payNotPayable, nil, nil
	}

	price, ok, err := s.credits.TryConsume(ctx, tx, o.UserID, key, o.ID, by)
	if err != nil {
		return 0, nil, err
	}

	if !ok {
		return payInsufficient, nil, nil
	}

	now := s.now()
	o.PaymentStatus = PaymentPaid
	o.TotalCost = price
	o.PaidAt = &now

	var job *ScanJob

	if startsOnPayment(o.Kind) && o.Status == StatusPending {
		o.Status = StatusProcessing
		j := newScanJob(o)
		job = &j
	}

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return 0, nil, fmt.Errorf("updating order: %w", err)
	}

	return payCharged, job, nil
}

// AutoPay is the best-effort charge attempted right after creation. It
// reports whether the order is paid; a shortfall leaves it pending and unpaid
// and is not an error.
func (s *Service) AutoPay(ctx context.Context, userID, orderID uuid.UUID) (bool, error) {
	var (
		outcome payOutcome
		job     *ScanJob
	)

	err := s.inTx(ctx, func(tx Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if o.UserID != userID {
			return ErrNotFound
		}

		outcome, job, err = s.tryPay(ctx, tx, o, actor.System)

		return err
	})
	if err != nil {
		return false, fmt.Errorf("auto-pay %s: %w", orderID, err)
	}

	if outcome == payCharged {
		metrics.OrderTransitions.WithLabelValues("auto_pay").Inc()
	}

	if job != nil {
		s.publish(ctx, []ScanJob{*job})
	}

	return outcome.paid(), nil
}

type PayResult struct {
	PaidOrderIDs   []uuid.UUID
	UnpaidOrderIDs []uuid.UUID
}

// PayOrders pays the user's orders in the given order and stops at the first
// one the balance cannot cover. Everything after it is reported unpaid
// without being attempted. Orders the user does not own are dropped.
func (s *Service) PayOrders(ctx context.Context, userID uuid.UUID, orderIDs []uuid.UUID) (*PayResult, error) {
	ids := dedupe(orderIDs)
	res := &PayResult{PaidOrderIDs: []uuid.UUID{}, UnpaidOrderIDs: []uuid.UUID{}}

	if len(ids) == 0 {
		return res, nil
	}

	by := actor.User(userID)

	var jobs []ScanJob

	err := s.inTx(ctx, func(tx Tx) error {
		owned, err := tx.LockOwnedOrders(ctx, userID, ids)
		if err != nil {
			return fmt.Errorf("locking orders: %w", err)
		}

		stopped := false

		for _, id := range ids {
			o, ok := owned[id]
			if !ok {
				continue
			}

			if stopped {
				res.UnpaidOrderIDs = append(res.UnpaidOrderIDs, id)
				continue
			}

			outcome, job, err := s.tryPay(ctx, tx, o, by)
			if err != nil {
				return fmt.Errorf("paying order %s: %w", id, err)
			}

			switch outcome {
			case payCharged, payAlreadyPaid:
				res.PaidOrderIDs = append(res.PaidOrderIDs, id)
			case payInsufficient:
				res.UnpaidOrderIDs = append(res.UnpaidOrderIDs, id)
				stopped = true
			case payNotPayable:
				res.UnpaidOrderIDs = append(res.UnpaidOrderIDs, id)
			}

			if job != nil {
				jobs = append(jobs, *job)
			}
		}

		return tx.AppendAudit(ctx, &audit.Record{
			Actor:    by,
			Action:   audit.ActionOrderBulkPay,
			TargetID: userID.String(),
			Payload: map[string]any{
				"requested": idStrings(ids),
				"paid":      idStrings(res.PaidOrderIDs),
				"unpaid":    idStrings(res.UnpaidOrderIDs),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.BulkPayOrders.WithLabelValues("paid").Add(float64(len(res.PaidOrderIDs)))
	metrics.BulkPayOrders.WithLabelValues("unpaid").Add(float64(len(res.UnpaidOrderIDs)))

	s.publish(ctx, jobs)

	return res, nil
}

// dedupe keeps the first occurrence of each id.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}
