// Package wallet manages the key pair of a ledger participant and produces
// signed transactions. It never touches the network or the chain.
package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Record is the persisted form of a wallet.
type Record struct {
	Address    string `json:"Address"`
	PublicKey  string `json:"Public Key"`
	PrivateKey string `json:"Private Key"`
}

// Wallet holds a loaded key pair.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// Generate constructs a wallet with a new secp256k1 key pair.
func Generate() (Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return Wallet{}, fmt.Errorf("generating key: %w", err)
	}

	return FromPrivateKey(privateKey), nil
}

// FromPrivateKey constructs a wallet for an existing key.
func FromPrivateKey(privateKey *ecdsa.PrivateKey) Wallet {
	return Wallet{
		privateKey: privateKey,
		address:    signature.Address(privateKey.PublicKey),
	}
}

// Load reads a wallet record from disk. The stored address must match the one
// derived from the stored keys.
func Load(path string) (Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Wallet{}, fmt.Errorf("reading wallet: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Wallet{}, fmt.Errorf("decoding wallet: %w", err)
	}

	privateKey, err := signature.ToPrivateKey(rec.PrivateKey)
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet private key: %w", err)
	}

	w := FromPrivateKey(privateKey)

	if rec.PublicKey != "" && rec.PublicKey != w.PublicKeyHex() {
		return Wallet{}, errors.New("wallet public key does not match the private key")
	}

	if rec.Address != "" && rec.Address != w.address {
		return Wallet{}, errors.New("wallet address does not match the keys")
	}

	return w, nil
}

// Save writes the wallet record to disk, readable only by the owner.
func (w Wallet) Save(path string) error {
	data, err := json.MarshalIndent(w.Record(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating wallet directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing wallet: %w", err)
	}

	return nil
}

// Record returns the persisted form of the wallet.
func (w Wallet) Record() Record {
	return Record{
		Address:    w.address,
		PublicKey:  w.PublicKeyHex(),
		PrivateKey: signature.PrivateKeyHex(w.privateKey),
	}
}

// Address returns the base58check address of the wallet.
func (w Wallet) Address() string {
	return w.address
}

// PublicKeyHex returns the 64 byte public key in hex.
func (w Wallet) PublicKeyHex() string {
	return signature.PublicKeyHex(w.privateKey.PublicKey)
}

// NewTransaction constructs a transaction from this wallet and signs it.
func (w Wallet) NewTransaction(recipient string, amount uint64) (database.Tx, error) {
	if !signature.IsAddress(recipient) {
		return database.Tx{}, fmt.Errorf("invalid recipient address %q", recipient)
	}

	if amount == 0 {
		return database.Tx{}, errors.New("amount must be positive")
	}

	tx := database.NewTx(w.address, recipient, amount, w.PublicKeyHex())

	return tx.Sign(w.privateKey)
}
