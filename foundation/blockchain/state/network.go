package state

import (
	"context"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
)

// BroadcastTransaction opens a validation request for the transaction and
// asks every known peer to vote on it. The fan-out happens in the background
// and the validation id is returned immediately.
func (s *State) BroadcastTransaction(tx database.Tx) (uint64, error) {
	id := s.tally.Open()

	msg := message.NewTransaction{
		Broadcaster:  s.Self(),
		ValidationID: id,
		Status:       message.TxUnvalidated,
		Transaction:  tx,
	}

	data, err := message.Encode(message.TypeNewTransaction, msg)
	if err != nil {
		s.tally.Forget(id)
		return 0, err
	}

	s.spawn(func(ctx context.Context) {
		sent := s.transport.Broadcast(ctx, s.peerAddrs(), data)
		s.evHandler("state: BroadcastTransaction: tx[%s] id[%d] sent to peers[%d]", tx.TxHash, id, sent)
	})

	return id, nil
}

// NetSendTxToPeers shares a validated transaction with every known peer so
// they add it to their pending pool.
func (s *State) NetSendTxToPeers(ctx context.Context, tx database.Tx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	msg := message.NewTransaction{
		Broadcaster: s.Self(),
		Status:      message.TxValidated,
		Transaction: tx,
	}

	s.broadcast(ctx, message.TypeNewTransaction, msg)
}

// BroadcastNewBlock sends a new block to every known peer. Failures are
// logged and not retried.
func (s *State) BroadcastNewBlock(ctx context.Context, block database.Block) {
	s.evHandler("state: BroadcastNewBlock: started")
	defer s.evHandler("state: BroadcastNewBlock: completed")

	msg := message.NewBlock{
		Block: database.NewBlockData(block),
	}

	s.broadcast(ctx, message.TypeNewBlock, msg)
}

// NetSendHeartbeat tells every known peer this node is alive and how long
// its chain is.
func (s *State) NetSendHeartbeat(ctx context.Context) {
	height, err := s.db.Height()
	if err != nil {
		s.evHandler("state: NetSendHeartbeat: WARNING: %s", err)
		return
	}

	msg := message.Heartbeat{
		NodeID:      s.nodeID,
		NodeAddress: s.Self(),
		Height:      height,
	}

	s.broadcast(ctx, message.TypeHeartbeat, msg)
}

// NetRequestPeers asks every known peer for the peers it knows.
func (s *State) NetRequestPeers(ctx context.Context) {
	s.broadcast(ctx, message.TypePeerListRequest, message.PeerListRequest{NodeID: s.nodeID})
}

// NetRequestSync anchors a chain and a pending pool reconciliation on this
// node's latest hashes and sends both to every known peer. The peers push
// what this node is missing.
func (s *State) NetRequestSync(ctx context.Context) error {
	s.evHandler("state: NetRequestSync: started")
	defer s.evHandler("state: NetRequestSync: completed")

	latestHash, err := s.db.LatestHash()
	if err != nil {
		return err
	}

	latestTx, err := s.db.LatestPendingTxHash()
	if err != nil {
		return err
	}

	self := s.Self()

	s.broadcast(ctx, message.TypeChainRequest, message.SyncRequest{Broadcaster: self, LatestHash: latestHash})
	s.broadcast(ctx, message.TypeTxRequest, message.SyncRequest{Broadcaster: self, LatestHash: latestTx})

	return nil
}

// SendChain sends the full chain snapshot to the peer.
func (s *State) SendChain(ctx context.Context, pr peer.Peer) error {
	blocks, err := s.db.Blocks()
	if err != nil {
		return err
	}

	content := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		content[i] = database.NewBlockData(block)
	}

	data, err := message.Encode(message.TypeBlockchainData, message.BlockchainData{Content: content})
	if err != nil {
		return err
	}

	if err := s.transport.Send(ctx, pr.Addr(), data); err != nil {
		return err
	}

	s.evHandler("state: SendChain: sent blocks[%d] to %s", len(content), pr)

	return nil
}

// =============================================================================

// broadcast encodes the payload once and sends it to every known peer.
func (s *State) broadcast(ctx context.Context, typ message.Type, payload any) int {
	data, err := message.Encode(typ, payload)
	if err != nil {
		s.evHandler("state: broadcast: %s: ERROR: %s", typ, err)
		return 0
	}

	return s.transport.Broadcast(ctx, s.peerAddrs(), data)
}

// peerAddrs returns the dialable addresses of the known peers.
func (s *State) peerAddrs() []string {
	peers := s.knownPeers.Copy(s.Self())

	addrs := make([]string, len(peers))
	for i, pr := range peers {
		addrs[i] = pr.Addr()
	}

	return addrs
}
