package state

import (
	"context"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/p2p"
)

// JoinNetwork sends a BOOTSTRAP handshake to the bootstrap node. The answer,
// the peer list, and the chain snapshot arrive asynchronously.
func (s *State) JoinNetwork(ctx context.Context, bootstrap peer.Peer) error {
	if bootstrap.Match(s.Self()) {
		s.evHandler("state: JoinNetwork: this node is the bootstrap node")
		return nil
	}

	return s.handshake(ctx, bootstrap, message.HandshakeBootstrap)
}

// ConnectPeer sends a REGULAR handshake to the peer.
func (s *State) ConnectPeer(ctx context.Context, pr peer.Peer) error {
	return s.handshake(ctx, pr, message.HandshakeRegular)
}

// handshake opens a fresh connection to the peer and sends the join request
// for the handshake type.
func (s *State) handshake(ctx context.Context, pr peer.Peer, handshakeType string) error {
	s.evHandler("state: handshake: started: %s: %s", handshakeType, pr)
	defer s.evHandler("state: handshake: completed: %s: %s", handshakeType, pr)

	self := s.Self()

	req := message.JoinRequest{
		HandshakeType: handshakeType,
		NodeAddress:   &self,
		NodeID:        s.nodeID,
		Timestamp:     time.Now().UTC(),
	}

	if handshakeType != message.HandshakeBasic {
		req.Capabilities = message.Capabilities
	}

	if handshakeType == message.HandshakeBootstrap {
		height, err := s.db.Height()
		if err != nil {
			s.evHandler("state: handshake: WARNING: advertising height 0: %s", err)
		}
		req.BlockchainHeight = &height
	}

	data, err := message.Encode(message.TypeJoinRequest, req)
	if err != nil {
		return err
	}

	if _, err := s.transport.Handshake(ctx, pr.Addr(), data); err != nil {
		return err
	}

	return nil
}

// handleJoinRequest accepts a new node into the network. The answer goes back
// on the same connection, the chain snapshot to the node's listen address.
func (s *State) handleJoinRequest(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var req message.JoinRequest
	if err := env.ParsePayload(&req); err != nil {
		return err
	}

	reject := func(reason string) error {
		s.evHandler("state: handleJoinRequest: %s: rejected: %s", c.Addr(), reason)

		resp := message.JoinResponse{
			Status:  message.StatusRejected,
			Message: "Join request invalid",
			NodeID:  s.nodeID,
		}

		return s.reply(c, message.TypeJoinResponse, resp)
	}

	if err := req.Validate(time.Now()); err != nil {
		return reject(err.Error())
	}

	joiner := *req.NodeAddress
	self := s.Self()

	if joiner.Match(self) {
		return reject("node address is this node")
	}

	if s.knownPeers.Add(joiner) {
		s.evHandler("state: handleJoinRequest: added peer[%s] node[%s]", joiner, req.NodeID)
		if err := s.savePeers(); err != nil {
			s.evHandler("state: handleJoinRequest: WARNING: saving peers: %s", err)
		}
	}
	s.knownPeers.Touch(joiner)

	resp := message.JoinResponse{
		Status:       message.StatusAccepted,
		Message:      "Welcome to the network!",
		NodeID:       s.nodeID,
		NodeAddress:  &self,
		NetworkPeers: s.knownPeers.Copy(joiner),
	}

	if err := s.reply(c, message.TypeJoinResponse, resp); err != nil {
		return err
	}

	s.evHandler("state: handleJoinRequest: accepted node[%s] at [%s] as %s", req.NodeID, joiner, req.HandshakeType)

	// Every accepted joiner gets the snapshot. A joiner already holding the
	// chain ignores it.
	s.spawn(func(ctx context.Context) {
		if err := s.SendChain(ctx, joiner); err != nil {
			s.evHandler("state: handleJoinRequest: WARNING: sending chain to %s: %s", joiner, err)
		}
	})

	return nil
}

// handleJoinResponse completes a handshake this node started. Accepted
// handshakes add the responder and every peer it knows, and the new peers
// are greeted with a REGULAR handshake.
func (s *State) handleJoinResponse(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var resp message.JoinResponse
	if err := env.ParsePayload(&resp); err != nil {
		return err
	}

	if resp.Status != message.StatusAccepted {
		s.evHandler("state: handleJoinResponse: %s: rejected: %s", c.Addr(), resp.Message)
		c.Close()
		return nil
	}

	c.SetState(p2p.Established)
	s.evHandler("state: handleJoinResponse: %s: accepted: %s", c.Addr(), resp.Message)

	self := s.Self()
	var added bool

	if !c.Inbound() {
		if responder, err := peer.Parse(c.Addr()); err == nil && !responder.Match(self) {
			if s.knownPeers.Add(responder) {
				added = true
			}
			s.knownPeers.Touch(responder)
		}
	}

	for _, pr := range resp.NetworkPeers {
		pr := pr
		if pr.Match(self) {
			continue
		}

		if !s.knownPeers.Add(pr) {
			continue
		}
		added = true

		s.spawn(func(ctx context.Context) {
			if err := s.ConnectPeer(ctx, pr); err != nil {
				s.evHandler("state: handleJoinResponse: WARNING: connecting to %s: %s", pr, err)
			}
		})
	}

	if added {
		if err := s.savePeers(); err != nil {
			s.evHandler("state: handleJoinResponse: WARNING: saving peers: %s", err)
		}
	}

	return nil
}

// handlePeerListRequest answers with the known peers and this node.
func (s *State) handlePeerListRequest(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var req message.PeerListRequest
	if err := env.ParsePayload(&req); err != nil {
		return err
	}

	self := s.Self()
	resp := message.PeerListResponse{
		Peers: append(s.knownPeers.Copy(self), self),
	}

	return s.reply(c, message.TypePeerListResponse, resp)
}

// handlePeerListResponse adds any peers this node did not know about.
func (s *State) handlePeerListResponse(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var resp message.PeerListResponse
	if err := env.ParsePayload(&resp); err != nil {
		return err
	}

	self := s.Self()
	var added int

	for _, pr := range resp.Peers {
		if pr.Match(self) || pr.Port <= 0 || pr.Host == "" {
			continue
		}
		if s.knownPeers.Add(pr) {
			added++
		}
	}

	if added > 0 {
		s.evHandler("state: handlePeerListResponse: %s: added peers[%d]", c.Addr(), added)
		return s.savePeers()
	}

	return nil
}

// handleHeartbeat records the peer as seen. A peer reporting a longer chain
// is asked for the missing blocks on the same connection.
func (s *State) handleHeartbeat(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var hb message.Heartbeat
	if err := env.ParsePayload(&hb); err != nil {
		return err
	}

	if _, known := s.knownPeers.LastSeen(hb.NodeAddress); !known {
		s.evHandler("state: handleHeartbeat: %s: heartbeat from unknown peer[%s]", c.Addr(), hb.NodeAddress)
		return nil
	}
	s.knownPeers.Touch(hb.NodeAddress)

	height, err := s.db.Height()
	if err != nil {
		return err
	}

	if hb.Height <= height {
		return nil
	}

	s.evHandler("state: handleHeartbeat: peer[%s] height[%d] ahead of local height[%d]", hb.NodeAddress, hb.Height, height)

	latest, err := s.db.LatestHash()
	if err != nil {
		return err
	}

	req := message.SyncRequest{
		Broadcaster: s.Self(),
		LatestHash:  latest,
	}

	return s.reply(c, message.TypeChainRequest, req)
}

// handleTestMessage logs free text, including reconciliation answers.
func (s *State) handleTestMessage(ctx context.Context, c *p2p.Conn, env message.Envelope) error {
	var msg message.TestMessage
	if err := env.ParsePayload(&msg); err != nil {
		return err
	}

	s.evHandler("state: handleTestMessage: %s: %s", c.Addr(), msg.Message)

	return nil
}

// =============================================================================

// savePeers persists the peer set when a peers file is configured.
func (s *State) savePeers() error {
	if s.peersFile == "" {
		return nil
	}

	return s.knownPeers.Save(s.peersFile, s.nodeID)
}

// spawn runs the function in the background until it returns. Shutdown
// waits for every spawned function.
func (s *State) spawn(f func(ctx context.Context)) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		f(s.ctx)
	}()
}
