package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
)

// ErrInsufficientFunds is returned when the sender can't cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// CheckValidationStatus returns the current outcome of a validation request
// given the peers active right now.
func (s *State) CheckValidationStatus(id uint64) (consensus.Status, error) {
	return s.tally.Check(id, s.ActivePeers())
}

// ValidationVotes returns the current tally for a validation request.
func (s *State) ValidationVotes(id uint64) (int, error) {
	return s.tally.Votes(id)
}

// ForgetValidation drops a validation request nobody will wait on.
func (s *State) ForgetValidation(id uint64) {
	s.tally.Forget(id)
}

// WaitValidation blocks until the validation request is decided or the
// validation timeout expires.
func (s *State) WaitValidation(ctx context.Context, id uint64) (consensus.Status, error) {
	return s.tally.Wait(ctx, id, s.ActivePeers, s.validationTimeout)
}

// SubmitTransaction runs a wallet transaction through the network vote. A
// transaction the peers agree is valid is added to the pending pool and
// shared with the peers as validated.
func (s *State) SubmitTransaction(ctx context.Context, tx database.Tx) (consensus.Status, error) {
	s.evHandler("state: SubmitTransaction: started: tx[%s]", tx)
	defer s.evHandler("state: SubmitTransaction: completed: tx[%s]", tx)

	if tx.IsCoinbase() {
		return consensus.Invalid, fmt.Errorf("%w: coinbase transactions can't be submitted", database.ErrValidation)
	}

	if err := tx.Validate(); err != nil {
		return consensus.Invalid, err
	}

	if s.db.Contains(tx.TxHash) {
		return consensus.Invalid, fmt.Errorf("%w: transaction %s already known", database.ErrValidation, tx.TxHash)
	}

	balance, err := s.db.BalanceOf(tx.Sender)
	if err != nil {
		return consensus.Pending, err
	}

	if balance < 0 || uint64(balance) < tx.Amount {
		return consensus.Invalid, fmt.Errorf("%w: balance %d, amount %d", ErrInsufficientFunds, balance, tx.Amount)
	}

	id, err := s.BroadcastTransaction(tx)
	if err != nil {
		return consensus.Pending, err
	}

	status, err := s.WaitValidation(ctx, id)
	if err != nil {
		return status, err
	}

	s.evHandler("state: SubmitTransaction: tx[%s] id[%d] status[%s]", tx.TxHash, id, status)

	if status != consensus.Valid {
		return status, nil
	}

	if _, err := s.db.EnqueuePending(tx); err != nil {
		return status, err
	}

	s.Worker().SignalShareTx(tx)
	s.signalMiningIfReady()

	return status, nil
}
