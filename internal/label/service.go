package label

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=label
type Orders interface {
	Create(ctx context.Context, params order.CreateParams) (*order.Order, error)
	AutoPay(ctx context.Context, userID, orderID uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

type Service struct {
	orders Orders
	logger *slog.Logger
}

func NewService(orders Orders, logger *slog.Logger) *Service {
	return &Service{orders: orders, logger: logger}
}

type Imported struct {
	Row   int
	Order *order.Order
	Paid  bool
}

// RowError is a manifest row that did not become an order.
type RowError struct {
	Row    int
	Reason string
}

type Result struct {
	Imported []Imported
	Rejected []RowError
}

func (r *Result) PaidCount() int {
	n := 0

	for _, imp := range r.Imported {
		if imp.Paid {
			n++
		}
	}

	return n
}

// Import creates one order per manifest row, in file order, and tries to pay
// each right after creating it. Rows the order service rejects are reported
// in the result; a failed payment leaves the order pending and unpaid.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, r io.Reader) (*Result, error) {
	rows, err := Parse(r)
	if err != nil {
		return nil, err
	}

	res := &Result{Imported: []Imported{}, Rejected: []RowError{}}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		labelID, err := parseLabelID(row.LabelID)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: row.Number, Reason: err.Error()})
			continue
		}

		o, err := s.orders.Create(ctx, order.CreateParams{
			UserID:        userID,
			Type:          row.Type,
			DesignSubtype: row.DesignSubtype,
			TrackingCode:  row.TrackingCode,
			Carrier:       row.Carrier,
			LabelID:       labelID,
		})

		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrUserNotFound):
			return nil, err
		case errors.Is(err, order.ErrInvalidInput), errors.Is(err, order.ErrDuplicateTracking):
			res.Rejected = append(res.Rejected, RowError{Row: row.Number, Reason: err.Error()})
			continue
		default:
			return nil, fmt.Errorf("importing row %d: %w", row.Number, err)
		}

		res.Imported = append(res.Imported, s.autoPay(ctx, userID, row.Number, o))
	}

	s.logger.InfoContext(ctx, "label manifest imported",
		"user_id", userID,
		"rows", len(rows),
		"imported", len(res.Imported),
		"paid", res.PaidCount(),
		"rejected", len(res.Rejected),
	)

	return res, nil
}

// parseLabelID reads the optional label_id cell. Orders from manifests
// without one carry no label reference.
func parseLabelID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid label id %q", raw)
	}

	return &id, nil
}

func (s *Service) autoPay(ctx context.Context, userID uuid.UUID, rowNum int, o *order.Order) Imported {
	paid, err := s.orders.AutoPay(ctx, userID, o.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "auto-pay failed", "order_id", o.ID, "row", rowNum, "error", err)
		return Imported{Row: rowNum, Order: o}
	}

	if paid {
		if fresh, err := s.orders.Get(ctx, o.ID); err == nil {
			o = fresh
		}
	}

	return Imported{Row: rowNum, Order: o, Paid: paid}
}
