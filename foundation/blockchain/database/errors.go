package database

import "errors"

// Set of error variables for the chain store.
var (
	ErrValidation        = errors.New("validation failed")
	ErrChainIntegrity    = errors.New("chain integrity violated")
	ErrPersistence       = errors.New("persistence failed")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrNoTransactions    = errors.New("no transactions in pending pool")
	ErrUnknownHash       = errors.New("unknown block hash")
)
