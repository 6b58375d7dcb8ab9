// Package state is the core API for the node and implements the gossip,
// sync, and consensus rules on top of the chain store and the transport.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/p2p"
)

// defaultValidationTimeout bounds how long a submitted transaction waits for
// peer votes.
const defaultValidationTimeout = 10 * time.Second

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the node.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, transaction sharing, and heartbeats.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
	SignalShareTx(tx database.Tx)
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	NodeID            string
	Host              string
	Advertise         string
	Beneficiary       string
	Genesis           genesis.Genesis
	Database          *database.Database
	KnownPeers        *peer.PeerSet
	PeersFile         string
	MaxFrameSize      uint64
	IdleTimeout       time.Duration
	ValidationTimeout time.Duration
	EvHandler         EventHandler
}

// State manages the node.
type State struct {
	nodeID            string
	advertise         string
	beneficiary       string
	peersFile         string
	validationTimeout time.Duration
	evHandler         EventHandler

	genesis    genesis.Genesis
	db         *database.Database
	knownPeers *peer.PeerSet
	tally      *consensus.Tally
	transport  *p2p.Transport
	handlers   map[message.Type]handler

	mu     sync.RWMutex
	self   peer.Peer
	worker Worker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs the node state. Nothing is listening until Start is called.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Database == nil {
		return nil, errors.New("state requires a database")
	}

	if cfg.NodeID == "" {
		return nil, errors.New("state requires a node id")
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	validationTimeout := cfg.ValidationTimeout
	if validationTimeout == 0 {
		validationTimeout = defaultValidationTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := State{
		nodeID:            cfg.NodeID,
		advertise:         cfg.Advertise,
		beneficiary:       cfg.Beneficiary,
		peersFile:         cfg.PeersFile,
		validationTimeout: validationTimeout,
		evHandler:         ev,

		genesis:    cfg.Genesis,
		db:         cfg.Database,
		knownPeers: knownPeers,
		tally:      consensus.New(),

		ctx:    ctx,
		cancel: cancel,
		worker: nopWorker{},
	}

	s.handlers = s.routes()

	transport, err := p2p.New(p2p.Config{
		Host:         cfg.Host,
		MaxFrameSize: cfg.MaxFrameSize,
		IdleTimeout:  cfg.IdleTimeout,
		Handler:      s.handleFrame,
		EvHandler:    p2p.EventHandler(ev),
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.transport = transport

	// The worker is replaced by the call to worker.Run once the node is
	// listening.

	return &s, nil
}

// Start binds the listener and fixes the address this node advertises to
// its peers.
func (s *State) Start() error {
	if err := s.transport.Start(); err != nil {
		return err
	}

	addr := s.advertise
	if addr == "" {
		addr = s.transport.Addr()
	}

	self, err := peer.Parse(addr)
	if err != nil {
		return fmt.Errorf("advertise address: %w", err)
	}
	s.mu.Lock()
	s.self = self
	s.mu.Unlock()

	// Never keep ourselves as a peer.
	s.knownPeers.Remove(self)

	s.evHandler("state: Start: node[%s] listening[%s] advertising[%s]", s.nodeID, s.transport.Addr(), self)

	return nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown(ctx context.Context) error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	// Make sure the database is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	s.Worker().Shutdown()

	s.cancel()

	if err := s.transport.Shutdown(ctx); err != nil {
		return fmt.Errorf("transport shutdown: %w", err)
	}

	s.wg.Wait()

	return s.savePeers()
}

// RegisterWorker sets the worker the node signals for mining and sharing.
func (s *State) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.worker = w
}

// Worker returns the registered worker.
func (s *State) Worker() Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.worker
}

// =============================================================================

// nopWorker is in place until a worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown()                    {}
func (nopWorker) SignalStartMining()           {}
func (nopWorker) SignalCancelMining()          {}
func (nopWorker) SignalShareTx(tx database.Tx) {}
