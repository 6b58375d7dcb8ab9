package state

import (
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
)

// Status summarizes the node.
type Status struct {
	NodeID      string    `json:"node_id"`
	Address     peer.Peer `json:"address"`
	Height      uint64    `json:"height"`
	LatestHash  string    `json:"latest_hash"`
	Pending     int       `json:"pending"`
	KnownPeers  int       `json:"known_peers"`
	ActivePeers int       `json:"active_peers"`
}

// NodeID returns the id of this node.
func (s *State) NodeID() string {
	return s.nodeID
}

// Self returns the address this node advertises.
func (s *State) Self() peer.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.self
}

// Beneficiary returns the address mining rewards are paid to.
func (s *State) Beneficiary() string {
	return s.beneficiary
}

// Genesis returns the genesis values.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Status returns a summary of the node.
func (s *State) Status() (Status, error) {
	height, err := s.db.Height()
	if err != nil {
		return Status{}, err
	}

	var latest string
	if height > 0 {
		if latest, err = s.db.LatestHash(); err != nil {
			return Status{}, err
		}
	}

	st := Status{
		NodeID:      s.nodeID,
		Address:     s.Self(),
		Height:      height,
		LatestHash:  latest,
		Pending:     s.db.PendingCount(),
		KnownPeers:  s.knownPeers.Len(),
		ActivePeers: s.ActivePeers(),
	}

	return st, nil
}

// BalanceOf returns the balance of the address over the chain and the
// pending pool.
func (s *State) BalanceOf(address string) (int64, error) {
	return s.db.BalanceOf(address)
}

// Height returns the number of blocks in the chain.
func (s *State) Height() (uint64, error) {
	return s.db.Height()
}

// Blocks returns a copy of the chain.
func (s *State) Blocks() ([]database.Block, error) {
	return s.db.Blocks()
}

// PeerList returns the known peers.
func (s *State) PeerList() []peer.Peer {
	return s.knownPeers.Copy(s.Self())
}

// PendingSnapshot returns the pending pool in arrival order.
func (s *State) PendingSnapshot() ([]database.Tx, error) {
	return s.db.PendingSnapshot()
}

// PendingCount returns the number of pending transactions.
func (s *State) PendingCount() int {
	return s.db.PendingCount()
}

// ActivePeers returns the number of peers with an established outbound
// connection. This is the electorate for transaction votes.
func (s *State) ActivePeers() int {
	return s.transport.ActiveCount()
}
