package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ardanlabs/ledgernode/business/web/errs"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
)

func Test_Ledger(t *testing.T) {
	type table struct {
		name   string
		err    error
		status int
	}

	tt := []table{
		{name: "unavailable", err: fmt.Errorf("reading: %w", database.ErrLedgerUnavailable), status: http.StatusServiceUnavailable},
		{name: "no-transactions", err: database.ErrNoTransactions, status: http.StatusConflict},
		{name: "unknown-id", err: consensus.ErrUnknownID, status: http.StatusNotFound},
		{name: "validation", err: fmt.Errorf("%w: bad signature", database.ErrValidation), status: http.StatusBadRequest},
		{name: "funds", err: state.ErrInsufficientFunds, status: http.StatusBadRequest},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			trusted := errs.GetTrusted(errs.Ledger(tst.err))
			if trusted == nil {
				t.Fatalf("Test %s:\tShould get back a trusted error.", tst.name)
			}

			if trusted.Status != tst.status {
				t.Logf("Test %s:\tgot: %d", tst.name, trusted.Status)
				t.Logf("Test %s:\texp: %d", tst.name, tst.status)
				t.Fatalf("Test %s:\tShould get back the right status.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}

	if errs.IsTrusted(errs.Ledger(errors.New("disk on fire"))) {
		t.Fatalf("Should not trust an unknown error.")
	}

	unavailable := errs.GetTrusted(errs.Ledger(database.ErrLedgerUnavailable))
	if unavailable.Error() != "ledger unavailable" {
		t.Fatalf("Should answer with the ledger unavailable message: %s", unavailable.Error())
	}
}
