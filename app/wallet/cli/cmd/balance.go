package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return balanceRun(cmd.OutOrStdout(), nodeURL, getWalletPath())
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node.")
}

func balanceRun(out io.Writer, node string, path string) error {
	w, err := wallet.Load(path)
	if err != nil {
		return err
	}

	resp, err := http.Get(fmt.Sprintf("%s/v1/balance/%s", node, url.PathEscape(w.Address())))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var bal balance
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		return err
	}

	fmt.Fprintf(out, "address: %s\nbalance: %d\n", bal.Address, bal.Balance)

	return nil
}

// responseError turns an error response from the node into an error.
func responseError(resp *http.Response) error {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("node responded %s", resp.Status)
	}

	return fmt.Errorf("node responded %s: %s", resp.Status, er.Error)
}
