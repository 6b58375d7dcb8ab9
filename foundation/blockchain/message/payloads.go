package message

import (
	"fmt"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/validate"
)

// Handshake variants carried by a join request.
const (
	HandshakeBootstrap = "BOOTSTRAP"
	HandshakeRegular   = "REGULAR"
	HandshakeBasic     = "BASIC"
)

// Join response statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Transaction statuses carried by NEW_TRANSACTION.
const (
	TxUnvalidated = "Unvalidated"
	TxValidated   = "Validated"
)

// Replies sent as TEST_MESSAGE by the reconciliation handlers.
const (
	NoMissingBlocks       = "No missing blocks"
	UnknownBlockHash      = "Unknown block hash"
	NoMissingTransactions = "No missing transactions"
	UnknownTxHash         = "Unknown tx hash"
)

// MaxClockSkew is how far in the future a join request may be stamped.
const MaxClockSkew = 300 * time.Second

// Capabilities advertised by this node.
var Capabilities = []string{"transaction_relay", "block_validation"}

// =============================================================================

// JoinRequest is the handshake sent to join the network. The fields required
// depend on the handshake type.
type JoinRequest struct {
	HandshakeType    string     `json:"handshake_type" validate:"required,oneof=BOOTSTRAP REGULAR BASIC"`
	NodeAddress      *peer.Peer `json:"node_address" validate:"required"`
	NodeID           string     `json:"node_id" validate:"required"`
	Capabilities     []string   `json:"capabilities,omitempty" validate:"required_unless=HandshakeType BASIC"`
	BlockchainHeight *uint64    `json:"blockchain_height,omitempty" validate:"required_if=HandshakeType BOOTSTRAP"`
	Timestamp        time.Time  `json:"timestamp" validate:"required"`
}

// Validate checks the required fields for the handshake type and that the
// request is not stamped too far in the future.
func (jr JoinRequest) Validate(now time.Time) error {
	if err := validate.Check(jr); err != nil {
		return err
	}

	if jr.Timestamp.After(now.Add(MaxClockSkew)) {
		return fmt.Errorf("request timestamp too far in future: %s", jr.Timestamp)
	}

	return nil
}

// JoinResponse answers a join request.
type JoinResponse struct {
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	NodeID       string      `json:"node_id,omitempty"`
	NodeAddress  *peer.Peer  `json:"node_address,omitempty"`
	NetworkPeers []peer.Peer `json:"network_peers,omitempty"`
}

// BlockchainData carries a full chain snapshot.
type BlockchainData struct {
	Content []database.BlockData `json:"content"`
}

// TestMessage carries free text, used for reconciliation replies.
type TestMessage struct {
	Message string `json:"message"`
}

// NewTransaction gossips a transaction. Unvalidated asks the receiver to vote,
// Validated asks the receiver to add it to the pending pool.
type NewTransaction struct {
	Broadcaster  peer.Peer   `json:"broadcaster"`
	ValidationID uint64      `json:"validation_id,omitempty"`
	Status       string      `json:"status" validate:"required,oneof=Unvalidated Validated"`
	Transaction  database.Tx `json:"transaction"`
}

// TransactionValidation is a vote on an Unvalidated transaction.
type TransactionValidation struct {
	IsValid      bool   `json:"is_valid"`
	Validator    string `json:"validator"`
	ValidationID uint64 `json:"validation_id"`
}

// NewBlock carries one block.
type NewBlock struct {
	Block database.BlockData `json:"block"`
}

// SyncRequest anchors a chain or pending pool reconciliation on the latest
// hash the sender knows.
type SyncRequest struct {
	Broadcaster peer.Peer `json:"broadcaster"`
	LatestHash  string    `json:"latest_hash" validate:"required"`
}

// PeerListRequest asks for the receiver's peers.
type PeerListRequest struct {
	NodeID string `json:"node_id"`
}

// PeerListResponse carries the sender's peers.
type PeerListResponse struct {
	Peers []peer.Peer `json:"peers"`
}

// Heartbeat keeps a connection alive and advertises the sender's height.
type Heartbeat struct {
	NodeID      string    `json:"node_id"`
	NodeAddress peer.Peer `json:"node_address"`
	Height      uint64    `json:"height"`
}
