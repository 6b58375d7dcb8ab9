// Package commands contains the functionality for the set of commands
// currently supported by the admin tooling.
package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
)

// Balances writes the balance of each address. With no addresses every
// address seen on the chain or in the pending pool is reported.
func Balances(w io.Writer, addresses []string, db *database.Database) error {
	if len(addresses) == 0 {
		seen, err := knownAddresses(db)
		if err != nil {
			return err
		}
		addresses = seen
	}

	hash, err := db.LatestHash()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "LatestBlockHash: %s\n\n", hash)

	for _, address := range addresses {
		bal, err := db.BalanceOf(address)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Address: %s  Balance: %d\n", address, bal)
	}

	return nil
}

func knownAddresses(db *database.Database) ([]string, error) {
	blocks, err := db.Blocks()
	if err != nil {
		return nil, err
	}

	pending, err := db.PendingSnapshot()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	add := func(txs []database.Tx) {
		for _, tx := range txs {
			if tx.Sender != "" {
				set[tx.Sender] = struct{}{}
			}
			set[tx.Recipient] = struct{}{}
		}
	}

	for _, block := range blocks {
		add(block.Trans.Values())
	}
	add(pending)

	addresses := make([]string, 0, len(set))
	for address := range set {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	return addresses, nil
}
