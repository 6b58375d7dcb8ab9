// Package disk implements the ability to read and write the chain and pending
// pool snapshots as whole JSON files on disk.
package disk

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
)

// Snapshot file names.
const (
	ChainFile   = "blockchain.json"
	PendingFile = "pending_transactions.json"
)

// Disk represents the serialization implementation for reading and storing
// the snapshots in a directory. This implements the database.Serializer
// interface.
type Disk struct {
	mu     sync.Mutex
	dbPath string
}

// New constructs a Disk value for use, creating the directory if needed.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since every snapshot is
// written to its own file and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// ReadChain reads the chain snapshot. A missing file is an empty chain.
func (d *Disk) ReadChain() ([]database.BlockData, error) {
	var blocks []database.BlockData
	if err := d.read(ChainFile, &blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// WriteChain replaces the chain snapshot.
func (d *Disk) WriteChain(blocks []database.BlockData) error {
	if blocks == nil {
		blocks = []database.BlockData{}
	}

	return d.write(ChainFile, blocks)
}

// ReadPending reads the pending pool snapshot. A missing file is an
// empty pool.
func (d *Disk) ReadPending() ([]database.Tx, error) {
	var txs []database.Tx
	if err := d.read(PendingFile, &txs); err != nil {
		return nil, err
	}

	return txs, nil
}

// WritePending replaces the pending pool snapshot.
func (d *Disk) WritePending(txs []database.Tx) error {
	if txs == nil {
		txs = []database.Tx{}
	}

	return d.write(PendingFile, txs)
}

// =============================================================================

// read decodes the named file into v.
func (d *Disk) read(name string, v any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(d.dbPath, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, v)
}

// write encodes v to a temporary file and renames it over the named file so
// a reader never sees a partial snapshot.
func (d *Disk) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.CreateTemp(d.dbPath, name+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, filepath.Join(d.dbPath, name)); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}
