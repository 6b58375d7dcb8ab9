// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// FounderAddress receives the genesis allocation when no genesis file is
// provided.
const FounderAddress = "1HZN9b2CbZHQS9FULHWmeeLKcGkgf6Pxe6"

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time `json:"date"`
	Founder       string    `json:"founder"`         // The address receiving the genesis coinbase.
	Allocation    uint64    `json:"allocation"`      // The amount minted to the founder.
	TransPerBlock uint16    `json:"trans_per_block"` // The number of pending transactions that triggers mining.
	Difficulty    uint16    `json:"difficulty"`      // How difficult it needs to be to solve the work problem.
	MiningReward  uint64    `json:"mining_reward"`   // Reward for mining a block.
	Version       int       `json:"version"`         // Block version written into every header.
}

// Default returns the genesis values the network runs with when no file is
// configured.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Founder:       FounderAddress,
		Allocation:    10000,
		TransPerBlock: 5,
		Difficulty:    2,
		MiningReward:  10,
		Version:       1,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. A missing file produces the
// default genesis and unset fields are taken from the default.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if genesis.Difficulty > 64 {
		return Genesis{}, errors.New("difficulty must not exceed 64")
	}

	return genesis, nil
}
