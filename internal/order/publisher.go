package order

import (
	"context"

	"github.com/google/uuid"
)

// ScanJob asks the scanning workers to activate a tracking code.
type ScanJob struct {
	JobID        uuid.UUID `json:"job_id"`
	OrderID      uuid.UUID `json:"order_id"`
	UserID       uuid.UUID `json:"user_id"`
	Carrier      string    `json:"carrier"`
	TrackingCode string    `json:"tracking_code"`
}

//go:generate mockgen -source=publisher.go -destination=publisher_mock.go -package=order
type Publisher interface {
	PublishScanJob(ctx context.Context, job ScanJob) error
}

func newScanJob(o *Order) ScanJob {
	return ScanJob{
		JobID:        uuid.New(),
		OrderID:      o.ID,
		UserID:       o.UserID,
		Carrier:      o.Carrier,
		TrackingCode: o.TrackingCode,
	}
}
