package public

import (
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/validate"
)

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

type height struct {
	Height     uint64 `json:"height"`
	LatestHash string `json:"latest_hash,omitempty"`
}

type peers struct {
	Self   peer.Peer   `json:"self"`
	Active int         `json:"active"`
	Peers  []peer.Peer `json:"peers"`
}

type tx struct {
	TxHash        string `json:"tx_hash"`
	Sender        string `json:"sender"`
	SenderName    string `json:"sender_name"`
	Recipient     string `json:"recipient"`
	RecipientName string `json:"recipient_name"`
	Amount        uint64 `json:"amount"`
	Signature     string `json:"signature"`
}

type submitResult struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

// newTx is the transaction a wallet submits. The node never signs on behalf
// of a client.
type newTx struct {
	Index           int    `json:"index"`
	TxHash          string `json:"tx_hash" validate:"required,len=64,hexadecimal"`
	Sender          string `json:"sender" validate:"required"`
	Recipient       string `json:"recipient" validate:"required"`
	Amount          uint64 `json:"amount" validate:"gt=0,lte=9223372036854775807"`
	Signature       string `json:"signature" validate:"required,hexadecimal"`
	SenderPublicKey string `json:"sender_public_key" validate:"required,hexadecimal"`
	Version         int    `json:"version"`
}

// Validate checks the data in the model is considered clean.
func (ntx newTx) Validate() error {
	return validate.Check(ntx)
}

func (ntx newTx) toTx() database.Tx {
	return database.Tx{
		TxHash:          ntx.TxHash,
		Sender:          ntx.Sender,
		Recipient:       ntx.Recipient,
		Amount:          ntx.Amount,
		Signature:       ntx.Signature,
		SenderPublicKey: ntx.SenderPublicKey,
		Version:         ntx.Version,
	}
}
