package service

import "errors"

// Ledger error taxonomy. Handlers map each kind to a stable business code;
// operations wrap these with detail via fmt.Errorf("%w: ...") so callers
// test with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrReceiverNotFound    = errors.New("receiver not found")
	ErrAmbiguousReceiver   = errors.New("receiver contact matches more than one account")
	ErrUnauthorized        = errors.New("caller does not own this account")
	ErrConcurrencyConflict = errors.New("too many concurrent updates, try again")
	ErrStoreUnavailable    = errors.New("store unavailable")

	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateContact   = errors.New("email or phone already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired or invalid")
)
