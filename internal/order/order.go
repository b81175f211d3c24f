package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the stored order type tag.
type Type string

const (
	TypeActiveTracking Type = "active_tracking"
	TypeEmptyPackage   Type = "empty_package"
	TypeDesign         Type = "design"
	TypeOther          Type = "other"
)

type DesignSubtype string

const (
	Design2D   DesignSubtype = "2d"
	Design3D   DesignSubtype = "3d"
	DesignLogo DesignSubtype = "logo"
)

// Status is the processing state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}

	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPaid
}

// Order is one billable unit of work.
type Order struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Kind          Kind
	TrackingCode  string // upper-cased; always empty for design orders
	Carrier       string
	TotalCost     decimal.Decimal
	Status        Status
	PaymentStatus PaymentStatus
	ResultURL     string
	AdminNote     string
	Warning       string     // set when the tracking code duplicates another empty package order
	LabelID       *uuid.UUID // set when derived from an imported label
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o *Order) Paid() bool {
	return o.PaymentStatus == PaymentPaid
}

// Terminal reports whether no further processing happens on the order.
func (o *Order) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed
}

type ListFilter struct {
	UserID        *uuid.UUID
	Status        *Status
	PaymentStatus *PaymentStatus
	Limit         int
}
