package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/ardanlabs/ledgernode/foundation/nameservice"
)

func Test_NameService(t *testing.T) {
	dir := t.TempDir()

	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	if err := w.Save(filepath.Join(dir, "kennedy.json")); err != nil {
		t.Fatalf("Should be able to save the wallet: %s", err)
	}

	ns, err := nameservice.New(dir)
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %s", err)
	}

	if name := ns.Lookup(w.Address()); name != "kennedy" {
		t.Fatalf("Should be able to lookup the name: got %q", name)
	}

	if addr := ns.Resolve("kennedy"); addr != w.Address() {
		t.Fatalf("Should be able to resolve the name: got %q", addr)
	}

	if addr := ns.Resolve("1unknown"); addr != "1unknown" {
		t.Fatalf("Should treat unknown names as addresses: got %q", addr)
	}

	if len(ns.Copy()) != 1 {
		t.Fatalf("Should copy the names.")
	}

	empty, err := nameservice.New(filepath.Join(dir, "missing"))
	if err != nil || len(empty.Copy()) != 0 {
		t.Fatalf("Should treat a missing folder as empty: %v", err)
	}
}
