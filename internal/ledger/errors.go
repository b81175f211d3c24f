package ledger

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidChange      = errors.New("invalid balance change")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrDuplicateReference = errors.New("ledger reference already used")
)
