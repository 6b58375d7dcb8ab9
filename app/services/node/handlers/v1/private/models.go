package private

import (
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/validate"
)

type broadcastResult struct {
	ValidationID uint64 `json:"validation_id"`
	TxHash       string `json:"tx_hash"`
}

type validationResult struct {
	ValidationID uint64 `json:"validation_id"`
	Status       string `json:"status"`
	Votes        int    `json:"votes"`
	ActivePeers  int    `json:"active_peers"`
}

type mineRequest struct {
	RewardAddress string `json:"reward_address"`
}

type mineResult struct {
	Index        uint64 `json:"index"`
	Hash         string `json:"hash"`
	Transactions int    `json:"transactions"`
}

// newPeer is a peer the operator asks the node to connect to.
type newPeer struct {
	Host string `json:"host" validate:"required"`
	Port int    `json:"port" validate:"gt=0,lte=65535"`
}

// Validate checks the data in the model is considered clean.
func (np newPeer) Validate() error {
	return validate.Check(np)
}

func (np newPeer) toPeer() peer.Peer {
	return peer.New(np.Host, np.Port)
}
