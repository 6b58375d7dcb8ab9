package commands_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ardanlabs/ledgernode/app/tooling/admin/commands"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
)

func Test_Commands(t *testing.T) {
	founder, err := wallet.Generate()
	if err != nil {
		t.Fatalf("Should be able to generate a wallet: %s", err)
	}

	g := genesis.Default()
	g.Founder = founder.Address()

	db := database.New(g, memory.New(), nil)
	if _, err := db.Genesis(context.Background()); err != nil {
		t.Fatalf("Should be able to create the genesis block: %s", err)
	}

	tx, err := founder.NewTransaction(genesis.FounderAddress, 25)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %s", err)
	}

	if _, err := db.EnqueuePending(tx); err != nil {
		t.Fatalf("Should be able to add a pending transaction: %s", err)
	}

	var out bytes.Buffer
	if err := commands.Balances(&out, nil, db); err != nil {
		t.Fatalf("Should be able to report balances: %s", err)
	}

	if !strings.Contains(out.String(), founder.Address()+"  Balance: 9975") {
		t.Fatalf("Should report the founder balance net of pending:\n%s", out.String())
	}

	out.Reset()
	if err := commands.Blocks(&out, db); err != nil || !strings.Contains(out.String(), "From: coinbase") {
		t.Fatalf("Should report the genesis block: %v\n%s", err, out.String())
	}

	out.Reset()
	if err := commands.Pending(&out, db); err != nil || !strings.Contains(out.String(), "Pending: 1") {
		t.Fatalf("Should report the pending pool: %v\n%s", err, out.String())
	}
}
