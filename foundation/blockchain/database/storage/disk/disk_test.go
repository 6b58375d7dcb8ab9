package disk_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
)

func Test_Disk(t *testing.T) {
	dir := t.TempDir()

	d, err := disk.New(dir)
	if err != nil {
		t.Fatalf("Should be able to open the storage: %s", err)
	}

	blocks, err := d.ReadChain()
	if err != nil || len(blocks) != 0 {
		t.Fatalf("Should read an empty chain from a new directory: %v", err)
	}

	g := genesis.Default()
	db := database.New(g, d, nil)

	block, err := db.Genesis(context.Background())
	if err != nil {
		t.Fatalf("Should be able to create the genesis block: %s", err)
	}

	if _, err := os.Stat(filepath.Join(dir, disk.ChainFile)); err != nil {
		t.Fatalf("Should write the chain file: %s", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("Should not leave temporary files behind: %v", matches)
	}

	reloaded := database.New(g, d, nil)
	hash, err := reloaded.LatestHash()
	if err != nil {
		t.Fatalf("Should be able to reload the chain: %s", err)
	}

	if hash != block.Hash() {
		t.Logf("got: %s", hash)
		t.Logf("exp: %s", block.Hash())
		t.Fatalf("Should reload the same tip.")
	}
}

func Test_Corrupt(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, disk.ChainFile), []byte("{not json"), 0600); err != nil {
		t.Fatalf("Should be able to write the file: %s", err)
	}

	d, err := disk.New(dir)
	if err != nil {
		t.Fatalf("Should be able to open the storage: %s", err)
	}

	db := database.New(genesis.Default(), d, nil)

	if _, err := db.Height(); !errors.Is(err, database.ErrLedgerUnavailable) {
		t.Fatalf("Should report the ledger unavailable: %v", err)
	}

	if _, err := db.Genesis(context.Background()); !errors.Is(err, database.ErrLedgerUnavailable) {
		t.Fatalf("Should not overwrite an unreadable chain: %v", err)
	}
}
