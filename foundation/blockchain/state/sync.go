package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/p2p"
)

// handleChainRequest pushes every block after the requester's latest hash as
// its own NEW_BLOCK on the same connection.
func (s *State) handleChainRequest(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var req message.SyncRequest
	if err := env.ParsePayload(&req); err != nil {
		return err
	}

	blocks, err := s.db.BlocksAfter(req.LatestHash)
	switch {
	case errors.Is(err, database.ErrUnknownHash):
		return s.reply(c, message.TypeTestMessage, message.TestMessage{Message: message.UnknownBlockHash})

	case err != nil:
		return err

	case len(blocks) == 0:
		return s.reply(c, message.TypeTestMessage, message.TestMessage{Message: message.NoMissingBlocks})
	}

	s.evHandler("state: handleChainRequest: %s: sending missing blocks[%d]", c.Addr(), len(blocks))

	for _, block := range blocks {
		if err := s.reply(c, message.TypeNewBlock, message.NewBlock{Block: database.NewBlockData(block)}); err != nil {
			return err
		}
	}

	return nil
}

// handleTxRequest pushes every pending transaction after the requester's
// latest pending hash as a Validated NEW_TRANSACTION on the same connection.
func (s *State) handleTxRequest(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var req message.SyncRequest
	if err := env.ParsePayload(&req); err != nil {
		return err
	}

	txs, err := s.db.PendingAfter(req.LatestHash)
	switch {
	case errors.Is(err, database.ErrUnknownHash):
		return s.reply(c, message.TypeTestMessage, message.TestMessage{Message: message.UnknownTxHash})

	case err != nil:
		return err

	case len(txs) == 0:
		return s.reply(c, message.TypeTestMessage, message.TestMessage{Message: message.NoMissingTransactions})
	}

	s.evHandler("state: handleTxRequest: %s: sending missing transactions[%d]", c.Addr(), len(txs))

	self := s.Self()
	for _, tx := range txs {
		msg := message.NewTransaction{
			Broadcaster: self,
			Status:      message.TxValidated,
			Transaction: tx,
		}

		if err := s.reply(c, message.TypeNewTransaction, msg); err != nil {
			return err
		}
	}

	return nil
}

// handleBlockchainData adopts a full chain snapshot when the local chain is
// empty or a prefix of it.
func (s *State) handleBlockchainData(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var data message.BlockchainData
	if err := env.ParsePayload(&data); err != nil {
		return err
	}

	blocks := make([]database.Block, 0, len(data.Content))
	for _, bd := range data.Content {
		block, err := database.ToBlock(bd)
		if err != nil {
			return err
		}
		blocks = append(blocks, block)
	}

	adopted, err := s.db.AdoptSnapshot(blocks)
	if err != nil {
		return err
	}

	s.evHandler("state: handleBlockchainData: %s: blocks[%d] adopted[%v]", c.Addr(), len(blocks), adopted)

	// A mining operation on the old tip can't produce a block that links.
	if adopted {
		s.Worker().SignalCancelMining()
		s.signalMiningIfReady()
	}

	return nil
}

// handleNewBlock appends a block from a peer. A block from further ahead
// than the next height means this node is behind, so the missing blocks are
// requested on the same connection.
func (s *State) handleNewBlock(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var msg message.NewBlock
	if err := env.ParsePayload(&msg); err != nil {
		return err
	}

	block, err := database.ToBlock(msg.Block)
	if err != nil {
		return err
	}

	err = s.ProcessProposedBlock(block)
	if err == nil || !errors.Is(err, database.ErrChainIntegrity) {
		return err
	}

	height, herr := s.db.Height()
	if herr != nil || block.Header.Index <= height {
		return err
	}

	s.evHandler("state: handleNewBlock: %s: blk[%d] ahead of height[%d], requesting missing blocks", c.Addr(), block.Header.Index, height)

	latest, herr := s.db.LatestHash()
	if herr != nil {
		return herr
	}

	return s.reply(c, message.TypeChainRequest, message.SyncRequest{Broadcaster: s.Self(), LatestHash: latest})
}

// handleNewTransaction votes on an Unvalidated transaction and adds a
// Validated one to the pending pool.
func (s *State) handleNewTransaction(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var msg message.NewTransaction
	if err := env.ParsePayload(&msg); err != nil {
		return err
	}

	switch msg.Status {
	case message.TxUnvalidated:
		err := msg.Transaction.Validate()
		if err != nil {
			s.evHandler("state: handleNewTransaction: tx[%s]: voting invalid: %s", msg.Transaction.TxHash, err)
		}

		vote := message.TransactionValidation{
			IsValid:      err == nil,
			Validator:    s.nodeID,
			ValidationID: msg.ValidationID,
		}

		return s.reply(c, message.TypeTransactionValidation, vote)

	case message.TxValidated:
		if s.db.Contains(msg.Transaction.TxHash) {
			return nil
		}

		added, err := s.db.EnqueuePending(msg.Transaction)
		if err != nil {
			return err
		}

		if added {
			s.evHandler("state: handleNewTransaction: tx[%s] added to pending pool", msg.Transaction.TxHash)
			s.signalMiningIfReady()
		}

		return nil
	}

	s.evHandler("state: handleNewTransaction: %s: WARNING: unknown status %q", c.Addr(), msg.Status)

	return nil
}

// handleTransactionValidation records a peer's vote. The voter is the
// connection the vote arrived on so a peer can only vote once.
func (s *State) handleTransactionValidation(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var vote message.TransactionValidation
	if err := env.ParsePayload(&vote); err != nil {
		return err
	}

	if err := s.tally.Vote(vote.ValidationID, c.Addr(), vote.IsValid); err != nil {
		s.evHandler("state: handleTransactionValidation: id[%d] from %s: %s", vote.ValidationID, vote.Validator, err)
		return nil
	}

	s.evHandler("state: handleTransactionValidation: id[%d] from %s: valid[%v]", vote.ValidationID, vote.Validator, vote.IsValid)

	return nil
}
