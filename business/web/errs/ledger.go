package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
)

// Ledger converts the errors returned by the node into trusted errors with
// the status the client should see. Errors it doesn't know are returned as
// is and become a 500.
func Ledger(err error) error {
	switch {
	case errors.Is(err, database.ErrLedgerUnavailable):
		return NewTrusted(database.ErrLedgerUnavailable, http.StatusServiceUnavailable)

	case errors.Is(err, database.ErrNoTransactions):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, consensus.ErrUnknownID):
		return NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, database.ErrValidation),
		errors.Is(err, database.ErrChainIntegrity),
		errors.Is(err, state.ErrInsufficientFunds):
		return NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
