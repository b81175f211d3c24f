package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/metrics"
)

type Repository interface {
	Begin(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error)
}

// Tx is one unit of work over orders, the ledger and the audit log. Order
// rows are always locked before the user row.
type Tx interface {
	ledger.Tx
	audit.Appender

	InsertOrder(ctx context.Context, o *Order) error
	// LockOrder locks the order row until the transaction ends.
	LockOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	// LockOwnedOrders locks the orders of ids owned by userID in id order.
	// Orders that do not exist or belong to someone else are left out.
	LockOwnedOrders(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	// CountTracking counts live (not failed) orders of type t using code,
	// compared case-insensitively, other than excludeID.
	CountTracking(ctx context.Context, t Type, code string, excludeID uuid.UUID) (int, error)

	Commit() error
	Rollback() error
}

// RefundPolicy decides the amount credited back when a failed order is refunded.
type RefundPolicy string

const (
	// RefundLedger refunds the debit actually recorded for the order, and
	// nothing when there is none.
	RefundLedger RefundPolicy = "ledger"
	// RefundTotalCost refunds the order's total cost whether or not it was charged.
	RefundTotalCost RefundPolicy = "total_cost"
)

func ParseRefundPolicy(s string) (RefundPolicy, error) {
	switch p := RefundPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RefundLedger, RefundTotalCost:
		return p, nil
	}

	return "", fmt.Errorf("unknown refund policy %q", s)
}

type Service struct {
	repo      Repository
	credits   *credit.Service
	publisher Publisher

	refundPolicy RefundPolicy
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithRefundPolicy(p RefundPolicy) Option {
	return func(s *Service) { s.refundPolicy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, credits *credit.Service, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		credits:      credits,
		publisher:    publisher,
		refundPolicy: RefundLedger,
		logger:       slog.Default(),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateParams struct {
	UserID        uuid.UUID
	Type          Type
	DesignSubtype DesignSubtype
	TrackingCode  string
	Carrier       string
	LabelID       *uuid.UUID
}

// Create stores a new pending, unpaid order. Payment is not attempted.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, error) {
	kind, err := KindOf(params.Type, params.DesignSubtype)
	if err != nil {
		return nil, err
	}

	if d, ok := kind.(Design); ok && d.Subtype != "" && !validSubtype(d.Subtype) {
		return nil, fmt.Errorf("%w: unknown design subtype %q", ErrInvalidInput, d.Subtype)
	}

	o := &Order{
		UserID:        params.UserID,
		Kind:          kind,
		TrackingCode:  NormalizeTracking(params.TrackingCode),
		Carrier:       strings.TrimSpace(params.Carrier),
		TotalCost:     decimal.Zero,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		LabelID:       params.LabelID,
	}

	policy := trackingPolicyFor(kind)
	if policy == trackingForbidden {
		o.TrackingCode = ""
		o.Carrier = ""
	}

	if requiresTracking(kind) && o.TrackingCode == "" {
		return nil, fmt.Errorf("%w: %s order needs a tracking code", ErrInvalidInput, kind.Type())
	}

	if price, err := s.priceOf(kind); err == nil {
		o.TotalCost = price
	} else {
		s.logger.Debug("order created without price", "type", kind.Type(), "error", err)
	}

	err = s.inTx(ctx, func(tx Tx) error {
		if o.TrackingCode != "" && policy != trackingUnconstrained {
			n, err := tx.CountTracking(ctx, kind.Type(), o.TrackingCode, uuid.Nil)
			if err != nil {
				return fmt.Errorf("checking tracking code: %w", err)
			}

			if n > 0 && policy == trackingUnique {
				return fmt.Errorf("%w: %s", ErrDuplicateTracking, o.TrackingCode)
			}

			if n > 0 {
				o.Warning = fmt.Sprintf("tracking code %s is already used by another %s order", o.TrackingCode, kind.Type())
			}
		}

		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues("create").Inc()

	return o, nil
}

// NormalizeTracking trims a tracking code and upper-cases it.
func NormalizeTracking(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetForUser returns the order only if userID owns it.
func (s *Service) GetForUser(ctx context.Context, userID, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.UserID != userID {
		return nil, ErrNotFound
	}

	return o, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Order, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 200
	}

	return s.repo.ListOrders(ctx, filter)
}

func (s *Service) priceOf(k Kind) (decimal.Decimal, error) {
	key, err := ServiceKeyFor(k)
	if err != nil {
		return decimal.Zero, err
	}

	return s.credits.CostFor(key)
}

func (s *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}

	return nil
}

// publish hands jobs to the queue after their transaction committed. A
// failed publish leaves the order processing; it is logged, not returned.
func (s *Service) publish(ctx context.Context, jobs []ScanJob) {
	for _, job := range jobs {
		if err := s.publisher.PublishScanJob(ctx, job); err != nil {
			metrics.JobsPublished.WithLabelValues("error").Inc()
			s.logger.Error("failed to publish scan job", "order_id", job.OrderID, "job_id", job.JobID, "error", err)

			continue
		}

		metrics.JobsPublished.WithLabelValues("ok").Inc()
	}
}

func (s *Service) lockOrder(ctx context.Context, tx Tx, id uuid.UUID) (*Order, error) {
	o, err := tx.LockOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("locking order %s: %w", id, err)
	}

	return o, nil
}
