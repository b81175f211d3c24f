// Package audit describes the append-only admin audit trail. Records are
// written inside the same transaction as the change they describe.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
)

type Action string

const (
	ActionCreditAdjust         Action = "credit.adjust"
	ActionOrderStart           Action = "order.start"
	ActionOrderComplete        Action = "order.complete"
	ActionOrderFail            Action = "order.fail"
	ActionOrderResult          Action = "order.result"
	ActionOrderPaymentOverride Action = "order.payment_override"
	ActionOrderBulkPay         Action = "order.bulk_pay"
	ActionOrderBulkStart       Action = "order.bulk_start"
	ActionOrderBulkFail        Action = "order.bulk_fail"
)

type Record struct {
	ID        uuid.UUID
	Actor     actor.Actor
	Action    Action
	TargetID  string
	Payload   map[string]any
	CreatedAt time.Time
}

// Appender writes audit records. It is implemented by the open transactions
// of the stores, never by a standalone connection.
type Appender interface {
	AppendAudit(ctx context.Context, r *Record) error
}

type ListFilter struct {
	Action   *Action
	TargetID string
	Limit    int
}

type Repository interface {
	ListAudit(ctx context.Context, filter ListFilter) ([]*Record, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the newest records first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	return s.repo.ListAudit(ctx, filter)
}
