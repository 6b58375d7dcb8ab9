package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var force bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(cmd.OutOrStdout(), getWalletPath(), force)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing wallet.")
}

func generate(out io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("wallet %s already exists", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	w, err := wallet.Generate()
	if err != nil {
		return err
	}

	if err := w.Save(path); err != nil {
		return err
	}

	fmt.Fprintf(out, "wallet %s created\naddress: %s\n", path, w.Address())

	return nil
}
