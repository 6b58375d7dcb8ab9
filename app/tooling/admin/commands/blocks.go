package commands

import (
	"fmt"
	"io"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
)

// Blocks writes the chain, one block header and its transactions at a time.
func Blocks(w io.Writer, db *database.Database) error {
	blocks, err := db.Blocks()
	if err != nil {
		return err
	}

	for _, block := range blocks {
		h := block.Header
		fmt.Fprintf(w, "Block: %d  Hash: %s  Prev: %s  Nonce: %d  Merkle: %s\n", h.Index, h.Hash, h.PreviousHash, h.Nonce, h.MerkleRoot)
		writeTxs(w, block.Trans.Values())
	}

	return nil
}

// Pending writes the pending pool in arrival order.
func Pending(w io.Writer, db *database.Database) error {
	pending, err := db.PendingSnapshot()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Pending: %d\n", len(pending))
	writeTxs(w, pending)

	return nil
}

func writeTxs(w io.Writer, txs []database.Tx) {
	for _, tx := range txs {
		sender := tx.Sender
		if sender == "" {
			sender = "coinbase"
		}
		fmt.Fprintf(w, "  Tx: %s  From: %s  To: %s  Amount: %d\n", tx.TxHash, sender, tx.Recipient, tx.Amount)
	}
}
