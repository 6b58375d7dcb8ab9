// This program is a wallet for the ledger node. It manages a wallet file
// and sends signed transactions to a node.
package main

import "github.com/ardanlabs/ledgernode/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
