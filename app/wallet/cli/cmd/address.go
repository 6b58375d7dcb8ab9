package cmd

import (
	"fmt"
	"io"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address for the specific wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return address(cmd.OutOrStdout(), getWalletPath())
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func address(out io.Writer, path string) error {
	w, err := wallet.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, w.Address())

	return nil
}
