// Package nameservice reads a folder of wallet files and creates a name
// lookup for the addresses they hold.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
)

// ext is the extension of the wallet files the name service reads.
const ext = ".json"

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	names     map[string]string
	addresses map[string]string
}

// New constructs a name service with the wallets found under root. The
// file name without its extension is the name. A missing root is an empty
// name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		names:     make(map[string]string),
		addresses: make(map[string]string),
	}

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return &ns, nil
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != ext {
			return nil
		}

		w, err := wallet.Load(fileName)
		if err != nil {
			return fmt.Errorf("loading wallet %s: %w", fileName, err)
		}

		name := strings.TrimSuffix(filepath.Base(fileName), ext)
		ns.names[w.Address()] = name
		ns.addresses[name] = w.Address()

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address. An unknown address is
// returned as is.
func (ns *NameService) Lookup(address string) string {
	name, exists := ns.names[address]
	if !exists {
		return address
	}
	return name
}

// Resolve returns the address for a name. Anything that isn't a known name
// is treated as an address already.
func (ns *NameService) Resolve(nameOrAddress string) string {
	if address, exists := ns.addresses[nameOrAddress]; exists {
		return address
	}
	return nameOrAddress
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.names))
	for address, name := range ns.names {
		cpy[address] = name
	}
	return cpy
}
