// Package store holds what the storage backends share. The backends live in
// store/postgres and store/memory; both satisfy the ledger, credit, order and
// audit repositories with one transaction type.
package store

import (
	"errors"

	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

// ErrConflict is a uniqueness violation with no more specific domain error.
var ErrConflict = errors.New("storage conflict")

// Backend is everything a storage driver provides to the services.
type Backend interface {
	ledger.Repository
	credit.Repository
	order.Repository
	audit.Repository
}
