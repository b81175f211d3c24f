package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrUnknownService = errors.New("unknown service")

// ServiceKey identifies a billable service.
type ServiceKey string

const (
	ServiceScanLabel    ServiceKey = "scan_label"
	ServiceEmptyPackage ServiceKey = "empty_package"
	ServiceDesign2D     ServiceKey = "design_2d"
	ServiceDesign3D     ServiceKey = "design_3d"
	ServiceDesignLogo   ServiceKey = "design_logo"
	ServiceOther        ServiceKey = "other"
)

//go:generate mockgen -source=pricing.go -destination=provider_mock.go -package=pricing
type Provider interface {
	// Price returns the current credit price of key, or ErrUnknownService.
	Price(key ServiceKey) (decimal.Decimal, error)
}
