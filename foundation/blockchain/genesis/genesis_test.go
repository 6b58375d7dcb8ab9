package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
)

func Test_Load(t *testing.T) {
	dir := t.TempDir()

	g, err := genesis.Load(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("Should be able to load a missing genesis file: %s", err)
	}

	if g != genesis.Default() {
		t.Fatalf("Should get back the default genesis for a missing file.")
	}

	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(`{"founder":"1abc","difficulty":3}`), 0600); err != nil {
		t.Fatalf("Should be able to write the genesis file: %s", err)
	}

	g, err = genesis.Load(path)
	if err != nil {
		t.Fatalf("Should be able to load the genesis file: %s", err)
	}

	if g.Founder != "1abc" || g.Difficulty != 3 {
		t.Fatalf("Should get back the file values: %+v", g)
	}

	if g.Allocation != 10000 || g.MiningReward != 10 || g.TransPerBlock != 5 {
		t.Fatalf("Should fill unset values from the default: %+v", g)
	}

	if err := os.WriteFile(path, []byte(`{"difficulty":65}`), 0600); err != nil {
		t.Fatalf("Should be able to write the genesis file: %s", err)
	}

	if _, err := genesis.Load(path); err == nil {
		t.Fatalf("Should not accept a difficulty above the hash length.")
	}
}
