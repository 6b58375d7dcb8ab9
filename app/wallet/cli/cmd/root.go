// Package cmd contains wallet app
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	walletName string
	walletPath string
)

const (
	walletExtension = ".json"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&walletName, "wallet", "w", "private", "Name of the wallet file.")
	rootCmd.PersistentFlags().StringVarP(&walletPath, "wallet-path", "p", "zblock/wallets/", "Path to the directory with wallet files.")
}

var rootCmd = &cobra.Command{
	Use:          "wallet",
	Short:        "Your simple wallet",
	SilenceUsage: true,
}

// Execute runs the wallet command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getWalletPath() string {
	name := walletName
	if !strings.HasSuffix(name, walletExtension) {
		name += walletExtension
	}

	return filepath.Join(walletPath, name)
}
