// Package mempool maintains the pending transaction pool for the blockchain.
// Transactions are kept in arrival order and deduplicated by hash.
package mempool

import (
	"sync"
)

// Keyed represents the behavior a value must exhibit to be held in the pool.
type Keyed interface {
	Hash() string
}

// Mempool represents a FIFO cache of transactions with a second key on
// the transaction hash.
type Mempool[T Keyed] struct {
	mu    sync.RWMutex
	pool  []T
	index map[string]int
}

// New constructs a new, empty mempool.
func New[T Keyed]() *Mempool[T] {
	return &Mempool[T]{
		index: make(map[string]int),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool[T]) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether a transaction with the hash is in the pool.
func (mp *Mempool[T]) Contains(hash string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.index[hash]
	return exists
}

// Add appends the transaction to the end of the pool. A transaction whose
// hash is already present is not added and false is returned.
func (mp *Mempool[T]) Add(tx T) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.index[tx.Hash()]; exists {
		return false
	}

	mp.index[tx.Hash()] = len(mp.pool)
	mp.pool = append(mp.pool, tx)

	return true
}

// Upsert adds the transaction or replaces the transaction with the same hash
// in place. It returns the position of the transaction in the pool.
func (mp *Mempool[T]) Upsert(tx T) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if i, exists := mp.index[tx.Hash()]; exists {
		mp.pool[i] = tx
		return i
	}

	mp.index[tx.Hash()] = len(mp.pool)
	mp.pool = append(mp.pool, tx)

	return len(mp.pool) - 1
}

// Delete removes the transactions with the specified hashes from the pool
// and returns how many were removed.
func (mp *Mempool[T]) Delete(hashes ...string) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	remove := make(map[string]struct{}, len(hashes))
	for _, hash := range hashes {
		if _, exists := mp.index[hash]; exists {
			remove[hash] = struct{}{}
		}
	}

	if len(remove) == 0 {
		return 0
	}

	pool := make([]T, 0, len(mp.pool)-len(remove))
	for _, tx := range mp.pool {
		if _, exists := remove[tx.Hash()]; !exists {
			pool = append(pool, tx)
		}
	}
	mp.reset(pool)

	return len(remove)
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool[T]) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.reset(nil)
}

// Replace swaps the contents of the pool for the specified transactions.
// Later duplicates are dropped.
func (mp *Mempool[T]) Replace(txs []T) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	pool := make([]T, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, exists := seen[tx.Hash()]; exists {
			continue
		}
		seen[tx.Hash()] = struct{}{}
		pool = append(pool, tx)
	}
	mp.reset(pool)
}

// Copy returns the transactions in arrival order.
func (mp *Mempool[T]) Copy() []T {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]T, len(mp.pool))
	copy(txs, mp.pool)

	return txs
}

// Last returns the most recently added transaction.
func (mp *Mempool[T]) Last() (T, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if len(mp.pool) == 0 {
		var zero T
		return zero, false
	}

	return mp.pool[len(mp.pool)-1], true
}

// After returns the transactions that arrived after the transaction with the
// specified hash. The bool is false when the hash is not in the pool.
func (mp *Mempool[T]) After(hash string) ([]T, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	i, exists := mp.index[hash]
	if !exists {
		return nil, false
	}

	txs := make([]T, len(mp.pool)-i-1)
	copy(txs, mp.pool[i+1:])

	return txs, true
}

// =============================================================================

// reset replaces the pool and rebuilds the hash index. The caller must hold
// the write lock.
func (mp *Mempool[T]) reset(pool []T) {
	mp.pool = pool
	mp.index = make(map[string]int, len(pool))
	for i, tx := range pool {
		mp.index[tx.Hash()] = i
	}
}
