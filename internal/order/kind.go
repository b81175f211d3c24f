package order

import (
	"fmt"

	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
)

// Kind is the closed set of order kinds. Every rule that differs per kind is
// a single switch over Kind in this file.
type Kind interface {
	Type() Type
	isKind()
}

type (
	ActiveTracking struct{}
	EmptyPackage   struct{}
	Design         struct{ Subtype DesignSubtype }
	Other          struct{}
)

func (ActiveTracking) Type() Type { return TypeActiveTracking }
func (EmptyPackage) Type() Type   { return TypeEmptyPackage }
func (Design) Type() Type         { return TypeDesign }
func (Other) Type() Type          { return TypeOther }

func (ActiveTracking) isKind() {}
func (EmptyPackage) isKind()   {}
func (Design) isKind()         {}
func (Other) isKind()          {}

// KindOf builds a Kind from its stored representation. The subtype is kept
// as-is for design orders and ignored otherwise.
func KindOf(t Type, subtype DesignSubtype) (Kind, error) {
	switch t {
	case TypeActiveTracking:
		return ActiveTracking{}, nil
	case TypeEmptyPackage:
		return EmptyPackage{}, nil
	case TypeDesign:
		return Design{Subtype: subtype}, nil
	case TypeOther:
		return Other{}, nil
	}

	return nil, fmt.Errorf("%w: unknown order type %q", ErrInvalidInput, t)
}

// SubtypeOf returns the design subtype of k, or "" for other kinds.
func SubtypeOf(k Kind) DesignSubtype {
	if d, ok := k.(Design); ok {
		return d.Subtype
	}

	return ""
}

func validSubtype(s DesignSubtype) bool {
	switch s {
	case Design2D, Design3D, DesignLogo:
		return true
	}

	return false
}

// ServiceKeyFor resolves the billable service of an order kind.
func ServiceKeyFor(k Kind) (pricing.ServiceKey, error) {
	switch k := k.(type) {
	case ActiveTracking:
		return pricing.ServiceScanLabel, nil
	case EmptyPackage:
		return pricing.ServiceEmptyPackage, nil
	case Design:
		switch k.Subtype {
		case Design2D:
			return pricing.ServiceDesign2D, nil
		case Design3D:
			return pricing.ServiceDesign3D, nil
		case DesignLogo:
			return pricing.ServiceDesignLogo, nil
		case "":
			return "", fmt.Errorf("%w: design order has no subtype", ErrInvalidInput)
		}

		return "", fmt.Errorf("%w: unmapped design subtype %q", ErrInvalidInput, k.Subtype)
	case Other:
		return pricing.ServiceOther, nil
	}

	return "", fmt.Errorf("%w: unknown order kind %T", ErrInvalidInput, k)
}

type trackingPolicy int

const (
	trackingUnconstrained trackingPolicy = iota
	// trackingUnique rejects a code already used by a live order of the same kind.
	trackingUnique
	// trackingWarn accepts duplicates but annotates the order.
	trackingWarn
	// trackingForbidden strips any code.
	trackingForbidden
)

func trackingPolicyFor(k Kind) trackingPolicy {
	switch k.(type) {
	case ActiveTracking:
		return trackingUnique
	case EmptyPackage:
		return trackingWarn
	case Design:
		return trackingForbidden
	}

	return trackingUnconstrained
}

// requiresTracking reports whether an order of kind k is meaningless without a code.
func requiresTracking(k Kind) bool {
	_, ok := k.(ActiveTracking)
	return ok
}

// startsOnPayment reports whether paying a pending order of kind k also
// moves it to processing and hands it to the scan queue.
func startsOnPayment(k Kind) bool {
	_, ok := k.(ActiveTracking)
	return ok
}

// checkCompletable is the completion gate for a processing order.
func checkCompletable(o *Order) error {
	if _, ok := o.Kind.(Design); ok && o.ResultURL == "" {
		return fmt.Errorf("%w: design order needs a result url before completion", ErrInvalidTransition)
	}

	return nil
}
