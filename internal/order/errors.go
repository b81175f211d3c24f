package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidInput      = errors.New("invalid order input")
	ErrDuplicateTracking = errors.New("tracking code already in use")
	ErrInvalidTransition = errors.New("invalid order state transition")
	// ErrNotStartable is the transition error for orders that are neither
	// pending nor processing.
	ErrNotStartable = fmt.Errorf("%w: order cannot be started", ErrInvalidTransition)
)
