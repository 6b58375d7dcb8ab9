package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/ardanlabs/ledgernode/foundation/nameservice"
	"github.com/spf13/cobra"
)

var (
	nodeURL string
	to      string
	amount  uint64
)

type submitResult struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, err := nameservice.New(walletPath)
		if err != nil {
			return err
		}

		return send(cmd.OutOrStdout(), nodeURL, getWalletPath(), ns.Resolve(to), amount)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address or wallet name to send to.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
}

func send(out io.Writer, node string, path string, recipient string, amount uint64) error {
	w, err := wallet.Load(path)
	if err != nil {
		return err
	}

	tx, err := w.NewTransaction(recipient, amount)
	if err != nil {
		return err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", node), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusGatewayTimeout:
	default:
		return responseError(resp)
	}

	var result submitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	fmt.Fprintf(out, "tx: %s\nstatus: %s\n", result.TxHash, result.Status)

	return nil
}
