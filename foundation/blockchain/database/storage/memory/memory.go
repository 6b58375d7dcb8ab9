// Package memory implements the ability to read and write the chain and
// pending pool snapshots to memory.
package memory

import (
	"sync"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// the snapshots in memory. This implements the database.Serializer interface.
type Memory struct {
	mu      sync.RWMutex
	blocks  []database.BlockData
	pending []database.Tx
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// ReadChain returns a copy of the stored chain.
func (m *Memory) ReadChain() ([]database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.BlockData, len(m.blocks))
	copy(blocks, m.blocks)

	return blocks, nil
}

// WriteChain replaces the stored chain.
func (m *Memory) WriteChain(blocks []database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make([]database.BlockData, len(blocks))
	copy(m.blocks, blocks)

	return nil
}

// ReadPending returns a copy of the stored pending pool.
func (m *Memory) ReadPending() ([]database.Tx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := make([]database.Tx, len(m.pending))
	copy(txs, m.pending)

	return txs, nil
}

// WritePending replaces the stored pending pool.
func (m *Memory) WritePending(txs []database.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = make([]database.Tx, len(txs))
	copy(m.pending, txs)

	return nil
}
