// Package database handles all the lower level support for maintaining the
// blockchain and the pending transaction pool, and deriving balances from
// them. All mutation is serialized behind one lock.
package database

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/signature"
)

// EmptyPool is the latest pending hash reported for an empty pool. Sent in a
// pool request it asks for every pending transaction.
const EmptyPool = "Empty"

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain. Each
// write replaces the whole snapshot.
type Serializer interface {
	ReadChain() ([]BlockData, error)
	WriteChain(blocks []BlockData) error
	ReadPending() ([]Tx, error)
	WritePending(txs []Tx) error
	Close() error
}

// =============================================================================

// Database manages the chain and the pending pool.
type Database struct {
	mu sync.RWMutex

	genesis   genesis.Genesis
	chain     []Block
	minedTxs  map[string]struct{}
	pool      *mempool.Mempool[Tx]
	loadErr   error
	writeErr  error
	evHandler func(v string, args ...any)

	serializer Serializer
}

// New constructs a new database and reads the chain and pending snapshots
// through the serializer. A snapshot that can't be read or fails validation
// leaves the database unavailable rather than failing construction.
func New(genesis genesis.Genesis, serializer Serializer, evHandler func(v string, args ...any)) *Database {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	db := Database{
		genesis:    genesis,
		minedTxs:   make(map[string]struct{}),
		pool:       mempool.New[Tx](),
		evHandler:  evHandler,
		serializer: serializer,
	}

	if err := db.load(); err != nil {
		evHandler("database: New: ERROR: %s", err)
		db.loadErr = err
	}

	return &db
}

// load reads and validates the persisted snapshots.
func (db *Database) load() error {
	blocksData, err := db.serializer.ReadChain()
	if err != nil {
		return fmt.Errorf("%w: reading chain: %s", ErrPersistence, err)
	}

	chain := make([]Block, 0, len(blocksData))
	for _, blockData := range blocksData {
		block, err := ToBlock(blockData)
		if err != nil {
			return err
		}

		if err := db.validate(block, chain); err != nil {
			return fmt.Errorf("block %d: %w", block.Header.Index, err)
		}

		chain = append(chain, block)
	}

	txs, err := db.serializer.ReadPending()
	if err != nil {
		return fmt.Errorf("%w: reading pending: %s", ErrPersistence, err)
	}

	db.chain = chain
	db.minedTxs = minedIndex(chain)

	var pending []Tx
	for _, tx := range txs {
		if _, mined := db.minedTxs[tx.TxHash]; mined {
			continue
		}
		if err := tx.Validate(); err != nil {
			db.evHandler("database: load: dropping pending tx[%s]: %s", tx.TxHash, err)
			continue
		}
		pending = append(pending, tx)
	}
	db.pool.Replace(pending)

	db.evHandler("database: load: blocks[%d] pending[%d]", len(chain), db.pool.Count())

	return nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Genesis mines and appends the genesis block if the chain is empty. Every
// node with the same genesis values produces the same genesis block.
func (db *Database) Genesis(ctx context.Context) (Block, error) {
	db.mu.RLock()
	{
		if err := db.availability(); err != nil {
			db.mu.RUnlock()
			return Block{}, err
		}

		if len(db.chain) > 0 {
			block := db.chain[0]
			db.mu.RUnlock()
			return block, nil
		}
	}
	db.mu.RUnlock()

	args := POWArgs{
		Version:      db.genesis.Version,
		Index:        0,
		PreviousHash: signature.ZeroHash,
		Difficulty:   uint(db.genesis.Difficulty),
		Trans:        []Tx{NewCoinbaseTx(db.genesis.Founder, db.genesis.Allocation, 0)},
		EvHandler:    db.evHandler,
	}

	block, err := POW(ctx, args)
	if err != nil {
		return Block{}, err
	}

	if err := db.Append(block); err != nil {
		return Block{}, err
	}

	return block, nil
}

// =============================================================================

// Append validates the block against the tip of the chain and adds it. The
// chain snapshot is persisted before memory is updated. The block's
// transactions leave the pending pool; if persisting the pool fails the
// block stays appended and ErrPersistence is returned.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loadErr != nil {
		return fmt.Errorf("%w: %s", ErrLedgerUnavailable, db.loadErr)
	}

	if err := db.validate(block, db.chain); err != nil {
		db.evHandler("database: Append: REJECTED: blk[%d]: %s", block.Header.Index, err)
		return err
	}

	chain := make([]Block, len(db.chain), len(db.chain)+1)
	copy(chain, db.chain)
	chain = append(chain, block)

	if err := db.writeChain(chain); err != nil {
		return err
	}

	db.chain = chain
	for _, tx := range block.Trans.Values() {
		db.minedTxs[tx.TxHash] = struct{}{}
	}

	db.evHandler("database: Append: blk[%d]: hash[%s]", block.Header.Index, block.Hash())

	return db.removeMined(block.Trans.Values())
}

// AdoptSnapshot replaces the chain with a full chain received from a peer.
// The snapshot must be valid from genesis and the local chain must be empty
// or a strict prefix of it. It reports whether the snapshot was adopted.
func (db *Database) AdoptSnapshot(blocks []Block) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loadErr != nil {
		return false, fmt.Errorf("%w: %s", ErrLedgerUnavailable, db.loadErr)
	}

	if len(blocks) <= len(db.chain) {
		return false, nil
	}

	for i, block := range db.chain {
		if blocks[i].Hash() != block.Hash() {
			return false, fmt.Errorf("%w: snapshot diverges at block %d", ErrChainIntegrity, i)
		}
	}

	chain := make([]Block, 0, len(blocks))
	chain = append(chain, db.chain...)
	for _, block := range blocks[len(db.chain):] {
		if err := db.validate(block, chain); err != nil {
			return false, err
		}
		chain = append(chain, block)
	}

	if err := db.writeChain(chain); err != nil {
		return false, err
	}

	var mined []Tx
	for _, block := range chain[len(db.chain):] {
		for _, tx := range block.Trans.Values() {
			db.minedTxs[tx.TxHash] = struct{}{}
			mined = append(mined, tx)
		}
	}
	db.chain = chain

	db.evHandler("database: AdoptSnapshot: height[%d]", len(chain))

	return true, db.removeMined(mined)
}

// EnqueuePending validates the transaction and appends it to the pending
// pool. It returns false without error when the transaction is already
// pending or mined.
func (db *Database) EnqueuePending(tx Tx) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loadErr != nil {
		return false, fmt.Errorf("%w: %s", ErrLedgerUnavailable, db.loadErr)
	}

	if tx.IsCoinbase() {
		return false, fmt.Errorf("%w: coinbase transactions can't be pending", ErrValidation)
	}

	if err := tx.Validate(); err != nil {
		return false, err
	}

	if _, mined := db.minedTxs[tx.TxHash]; mined {
		return false, nil
	}

	if db.pool.Contains(tx.TxHash) {
		return false, nil
	}

	tx.Index = db.pool.Count()
	db.pool.Add(tx)

	if err := db.writePending(); err != nil {
		db.pool.Delete(tx.TxHash)
		return false, err
	}

	db.evHandler("database: EnqueuePending: tx[%s]: pending[%d]", tx.TxHash, db.pool.Count())

	return true, nil
}

// =============================================================================

// BalanceOf folds over every transaction in every block and then over the
// pending pool, adding what the address received and subtracting what
// it sent. The fold is exact and the result saturates at the int64 bounds.
func (db *Database) BalanceOf(address string) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return 0, err
	}

	balance := new(big.Int)
	apply := func(tx Tx) {
		amount := new(big.Int).SetUint64(tx.Amount)
		if tx.Recipient == address {
			balance.Add(balance, amount)
		}
		if tx.Sender != "" && tx.Sender == address {
			balance.Sub(balance, amount)
		}
	}

	for _, block := range db.chain {
		for _, tx := range block.Trans.Values() {
			apply(tx)
		}
	}

	for _, tx := range db.pool.Copy() {
		apply(tx)
	}

	// A fold that leaves the int64 range saturates so an overflow can never
	// flip the sign of a balance.
	switch {
	case balance.IsInt64():
		return balance.Int64(), nil
	case balance.Sign() > 0:
		return math.MaxInt64, nil
	default:
		return math.MinInt64, nil
	}
}

// Height returns the number of blocks in the chain.
func (db *Database) Height() (uint64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return 0, err
	}

	return uint64(len(db.chain)), nil
}

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return Block{}, err
	}

	if len(db.chain) == 0 {
		return Block{}, fmt.Errorf("%w: chain is empty", ErrLedgerUnavailable)
	}

	return db.chain[len(db.chain)-1], nil
}

// LatestHash returns the hash of the tip of the chain.
func (db *Database) LatestHash() (string, error) {
	block, err := db.LatestBlock()
	if err != nil {
		return "", err
	}

	return block.Hash(), nil
}

// LatestPendingTxHash returns the hash of the most recent pending
// transaction, or EmptyPool.
func (db *Database) LatestPendingTxHash() (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return "", err
	}

	tx, ok := db.pool.Last()
	if !ok {
		return EmptyPool, nil
	}

	return tx.TxHash, nil
}

// Blocks returns a copy of the chain.
func (db *Database) Blocks() ([]Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return nil, err
	}

	blocks := make([]Block, len(db.chain))
	copy(blocks, db.chain)

	return blocks, nil
}

// BlocksAfter returns the blocks that follow the block with the specified
// hash. ErrUnknownHash is returned when no block has the hash.
func (db *Database) BlocksAfter(hash string) ([]Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return nil, err
	}

	for i, block := range db.chain {
		if block.Hash() != hash {
			continue
		}

		blocks := make([]Block, len(db.chain)-i-1)
		copy(blocks, db.chain[i+1:])
		return blocks, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownHash, hash)
}

// PendingSnapshot returns the pending pool in arrival order.
func (db *Database) PendingSnapshot() ([]Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return nil, err
	}

	return db.pool.Copy(), nil
}

// PendingAfter returns the pending transactions that follow the one with the
// specified hash. EmptyPool asks for the whole pool. ErrUnknownHash is
// returned when no pending transaction has the hash.
func (db *Database) PendingAfter(hash string) ([]Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.availability(); err != nil {
		return nil, err
	}

	if hash == EmptyPool {
		return db.pool.Copy(), nil
	}

	txs, found := db.pool.After(hash)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHash, hash)
	}

	return txs, nil
}

// PendingCount returns the number of pending transactions.
func (db *Database) PendingCount() int {
	return db.pool.Count()
}

// Contains reports whether the transaction is pending or mined.
func (db *Database) Contains(txHash string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if _, mined := db.minedTxs[txHash]; mined {
		return true
	}

	return db.pool.Contains(txHash)
}

// =============================================================================

// availability reports why the ledger can't be read. The caller must hold
// the lock.
func (db *Database) availability() error {
	switch {
	case db.loadErr != nil:
		return fmt.Errorf("%w: %s", ErrLedgerUnavailable, db.loadErr)
	case db.writeErr != nil:
		return fmt.Errorf("%w: %s", ErrLedgerUnavailable, db.writeErr)
	}

	return nil
}

// validate checks the block extends the chain. Blocks after genesis may
// carry one coinbase of at most the mining reward. The caller must hold
// the lock or own the chain.
func (db *Database) validate(block Block, chain []Block) error {
	var prev *Block
	if len(chain) > 0 {
		prev = &chain[len(chain)-1]
	}

	if err := block.Validate(prev, uint(db.genesis.Difficulty), db.evHandler); err != nil {
		return err
	}

	if prev == nil {
		return nil
	}

	var coinbases int
	for _, tx := range block.Trans.Values() {
		if !tx.IsCoinbase() {
			continue
		}

		coinbases++
		if coinbases > 1 || tx.Amount > db.genesis.MiningReward {
			return fmt.Errorf("%w: invalid mining reward in block %d", ErrChainIntegrity, block.Header.Index)
		}
	}

	return nil
}

// writeChain persists the chain snapshot. The caller must hold the lock.
func (db *Database) writeChain(chain []Block) error {
	blocksData := make([]BlockData, len(chain))
	for i, block := range chain {
		blocksData[i] = NewBlockData(block)
	}

	if err := db.serializer.WriteChain(blocksData); err != nil {
		db.writeErr = err
		return fmt.Errorf("%w: writing chain: %s", ErrPersistence, err)
	}
	db.writeErr = nil

	return nil
}

// writePending persists the pool snapshot. The caller must hold the lock.
func (db *Database) writePending() error {
	if err := db.serializer.WritePending(db.pool.Copy()); err != nil {
		db.writeErr = err
		return fmt.Errorf("%w: writing pending: %s", ErrPersistence, err)
	}
	db.writeErr = nil

	return nil
}

// removeMined drops mined transactions from the pool and persists the pool
// when it changed. The caller must hold the lock.
func (db *Database) removeMined(txs []Tx) error {
	hashes := make([]string, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.TxHash
	}

	if db.pool.Delete(hashes...) == 0 {
		return nil
	}

	return db.writePending()
}

// minedIndex builds the set of transaction hashes included in the chain.
func minedIndex(chain []Block) map[string]struct{} {
	mined := make(map[string]struct{})
	for _, block := range chain {
		for _, tx := range block.Trans.Values() {
			mined[tx.TxHash] = struct{}{}
		}
	}
	return mined
}
