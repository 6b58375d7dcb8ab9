package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/signature"
)

// MineNewBlock mines the pending pool into a new block rewarding the node's
// beneficiary.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	return s.MineBlock(ctx, s.beneficiary)
}

// MineBlock attempts to create a new block from the pending pool with a
// coinbase paying the mining reward to the specified address. The block is
// appended locally and proposed to the network.
func (s *State) MineBlock(ctx context.Context, rewardAddress string) (database.Block, error) {
	s.evHandler("state: MineBlock: MINING: check pending pool")

	if !signature.IsAddress(rewardAddress) {
		return database.Block{}, fmt.Errorf("%w: invalid reward address %q", database.ErrValidation, rewardAddress)
	}

	pending, err := s.db.PendingSnapshot()
	if err != nil {
		return database.Block{}, err
	}

	if len(pending) == 0 {
		return database.Block{}, database.ErrNoTransactions
	}

	latest, err := s.db.LatestBlock()
	if err != nil {
		return database.Block{}, err
	}

	index := latest.Header.Index + 1

	trans := make([]database.Tx, 0, len(pending)+1)
	trans = append(trans, database.NewCoinbaseTx(rewardAddress, s.genesis.MiningReward, index))
	trans = append(trans, pending...)

	s.evHandler("state: MineBlock: MINING: perform POW: blk[%d] txs[%d]", index, len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		Version:      s.genesis.Version,
		Index:        index,
		PreviousHash: latest.Hash(),
		Difficulty:   uint(s.genesis.Difficulty),
		Trans:        trans,
		EvHandler:    s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineBlock: MINING: append blk[%d]: hash[%s]", index, block.Hash())

	if err := s.db.Append(block); err != nil {
		return database.Block{}, err
	}

	s.BroadcastNewBlock(ctx, block)

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, appends it to the chain. Any mining operation in progress
// is cancelled since it can no longer link.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: blk[%d]: hash[%s]", block.Header.Index, block.Hash())
	defer s.evHandler("state: ProcessProposedBlock: completed")

	if err := s.db.Append(block); err != nil {
		return err
	}

	s.Worker().SignalCancelMining()
	s.signalMiningIfReady()

	return nil
}

// signalMiningIfReady starts mining once the pending pool holds a full
// block's worth of transactions.
func (s *State) signalMiningIfReady() {
	if s.db.PendingCount() >= int(s.genesis.TransPerBlock) {
		s.Worker().SignalStartMining()
	}
}
