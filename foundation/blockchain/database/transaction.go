package database

import (
	"crypto/ecdsa"
	"fmt"
	"math"
	"strconv"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/signature"
)

// Transaction versions.
const (
	TxVersion       = 1
	CoinbaseVersion = 2
)

// =============================================================================

// Tx is the transactional information between two parties. A transaction
// without a sender is a coinbase minting new value.
type Tx struct {
	Index           int    `json:"index"`
	TxHash          string `json:"tx_hash"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	Amount          uint64 `json:"amount"`
	Signature       string `json:"signature"`
	SenderPublicKey string `json:"sender_public_key"`
	BlockHeight     uint64 `json:"block_height,omitempty"`
	Version         int    `json:"version"`
}

// NewTx constructs a new unsigned transaction. The transaction hash is fixed
// here, before the signature exists, and serves as the identity of the
// transaction from then on.
func NewTx(sender string, recipient string, amount uint64, publicKeyHex string) Tx {
	tx := Tx{
		Sender:          sender,
		Recipient:       recipient,
		Amount:          amount,
		SenderPublicKey: publicKeyHex,
		Version:         TxVersion,
	}
	tx.TxHash = tx.calculateHash()

	return tx
}

// NewCoinbaseTx constructs a transaction minting the amount to the recipient
// at the specified block height.
func NewCoinbaseTx(recipient string, amount uint64, blockHeight uint64) Tx {
	tx := Tx{
		Recipient:   recipient,
		Amount:      amount,
		BlockHeight: blockHeight,
		Version:     CoinbaseVersion,
	}
	tx.TxHash = tx.calculateHash()

	return tx
}

// Sign uses the specified private key to sign the transaction. The hash is
// left untouched.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	sig, err := signature.Sign(tx.signingData(), privateKey)
	if err != nil {
		return Tx{}, err
	}

	tx.Signature = sig

	return tx, nil
}

// VerifySignature checks the signature against the sender's public key.
// Any parsing or crypto failure reports false.
func (tx Tx) VerifySignature() bool {
	if tx.Signature == "" || tx.SenderPublicKey == "" {
		return false
	}

	return signature.Verify(tx.signingData(), tx.Signature, tx.SenderPublicKey)
}

// IsCoinbase reports whether the transaction mints new value.
func (tx Tx) IsCoinbase() bool {
	return tx.Sender == ""
}

// Validate performs the structural checks on the transaction and verifies
// the signature. The sender must be the address of the signing key.
func (tx Tx) Validate() error {
	if tx.Amount > MaxAmount {
		return fmt.Errorf("%w: amount exceeds %d", ErrValidation, uint64(MaxAmount))
	}

	if tx.IsCoinbase() {
		if tx.Recipient == "" || tx.Amount == 0 {
			return fmt.Errorf("%w: coinbase requires recipient and amount", ErrValidation)
		}

		if tx.TxHash != tx.calculateHash() {
			return fmt.Errorf("%w: coinbase hash mismatch", ErrValidation)
		}

		return nil
	}

	switch {
	case tx.Recipient == "":
		return fmt.Errorf("%w: missing recipient", ErrValidation)
	case tx.Amount == 0:
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	case tx.Signature == "":
		return fmt.Errorf("%w: missing signature", ErrValidation)
	case tx.TxHash != tx.calculateHash():
		return fmt.Errorf("%w: transaction hash mismatch", ErrValidation)
	}

	if !tx.VerifySignature() {
		return fmt.Errorf("%w: invalid signature", ErrValidation)
	}

	address, err := signature.AddressFromHex(tx.SenderPublicKey)
	if err != nil || address != tx.Sender {
		return fmt.Errorf("%w: sender does not match public key", ErrValidation)
	}

	return nil
}

// MaxAmount is the largest amount a single transaction can move. Balances
// are signed 64 bit values.
const MaxAmount = math.MaxInt64

// Hash implements the merkle Hashable interface. The transaction hash is the
// leaf identity.
func (tx Tx) Hash() string {
	return tx.TxHash
}

// Equals implements the merkle Hashable interface.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.TxHash == otherTx.TxHash
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	if tx.IsCoinbase() {
		return fmt.Sprintf("coinbase:%s:%d", tx.Recipient, tx.Amount)
	}

	return fmt.Sprintf("%s->%s:%d", tx.Sender, tx.Recipient, tx.Amount)
}

// =============================================================================

// calculateHash derives the transaction identity. Signed transactions hash
// with an empty signature.
func (tx Tx) calculateHash() string {
	amount := strconv.FormatUint(tx.Amount, 10)

	if tx.IsCoinbase() {
		height := strconv.FormatUint(tx.BlockHeight, 10)
		return signature.HashString("coinbase" + tx.Recipient + amount + height)
	}

	return signature.HashString(amount + tx.Recipient + tx.Sender)
}

// signingData is the canonical string covered by the signature.
func (tx Tx) signingData() string {
	return tx.Sender + tx.Recipient + strconv.FormatUint(tx.Amount, 10)
}
