// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

// ZeroHash represents a hash code of zeros. It is the previous hash of the
// genesis block.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// addressVersion is the base58check version byte for a pay-to-pubkey-hash
// address on the main network.
const addressVersion byte = 0x00

// signatureLength is the size of a [R|S] signature without the recovery id.
const signatureLength = 64

// =============================================================================

// Hash returns a unique string for the value. The value is marshaled to JSON
// so struct field order determines the hash input.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString returns the hex encoded sha256 of the string.
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// Sign uses the specified private key to sign the data. The signature is
// returned hex encoded in the [R|S] format.
func Sign(data string, privateKey *ecdsa.PrivateKey) (string, error) {
	digest := sha256.Sum256([]byte(data))

	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return "", err
	}

	rs := sig[:signatureLength]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), digest[:], rs) {
		return "", errors.New("invalid signature")
	}

	return hex.EncodeToString(rs), nil
}

// Verify checks the hex encoded signature was produced over the data by the
// private key paired with the hex encoded public key. Any parsing failure is
// reported as an invalid signature.
func Verify(data string, sigHex string, publicKeyHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}

	switch len(sig) {
	case signatureLength:
	case signatureLength + 1:
		sig = sig[:signatureLength]
	default:
		return false
	}

	publicKey, err := ToPublicKey(publicKeyHex)
	if err != nil {
		return false
	}

	digest := sha256.Sum256([]byte(data))
	return crypto.VerifySignature(crypto.FromECDSAPub(publicKey), digest[:], sig)
}

// =============================================================================

// PublicKeyHex encodes the public key as the hex of its 64 byte X|Y form.
func PublicKeyHex(publicKey ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(&publicKey)[1:])
}

// ToPublicKey decodes a hex encoded public key. Both the 64 byte X|Y form and
// the 65 byte uncompressed form are accepted.
func ToPublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	if len(raw) == 64 {
		raw = append([]byte{0x04}, raw...)
	}

	return crypto.UnmarshalPubkey(raw)
}

// PrivateKeyHex encodes the private key as hex.
func PrivateKeyHex(privateKey *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(privateKey))
}

// ToPrivateKey decodes a hex encoded private key.
func ToPrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(privateKeyHex)
}

// Address derives the base58check address for the public key from the
// ripemd160 of the sha256 of the 64 byte X|Y public key.
func Address(publicKey ecdsa.PublicKey) string {
	sum := sha256.Sum256(crypto.FromECDSAPub(&publicKey)[1:])

	h := ripemd160.New()
	h.Write(sum[:])

	return base58.CheckEncode(h.Sum(nil), addressVersion)
}

// AddressFromHex derives the address for a hex encoded public key.
func AddressFromHex(publicKeyHex string) (string, error) {
	publicKey, err := ToPublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}

	return Address(*publicKey), nil
}

// IsAddress reports whether the value decodes as a base58check address.
func IsAddress(address string) bool {
	_, version, err := base58.CheckDecode(address)
	return err == nil && version == addressVersion
}
