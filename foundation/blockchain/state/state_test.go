package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/message"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/ardanlabs/ledgernode/foundation/p2p"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wait = 10 * time.Second
	tick = 20 * time.Millisecond
)

func newWallet(t *testing.T) wallet.Wallet {
	t.Helper()

	w, err := wallet.Generate()
	require.NoError(t, err)

	return w
}

func newNode(t *testing.T, nodeID string, g genesis.Genesis, miner string) *state.State {
	t.Helper()

	ev := func(v string, args ...any) {
		t.Logf(nodeID+": "+v, args...)
	}

	db := database.New(g, memory.New(), ev)
	_, err := db.Genesis(context.Background())
	require.NoError(t, err)

	s, err := state.New(state.Config{
		NodeID:            nodeID,
		Host:              "127.0.0.1:0",
		Beneficiary:       miner,
		Genesis:           g,
		Database:          db,
		KnownPeers:        peer.NewPeerSet(),
		ValidationTimeout: 5 * time.Second,
		EvHandler:         ev,
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
	})

	return s
}

func hasPeer(s *state.State, pr peer.Peer) bool {
	for _, p := range s.PeerList() {
		if p.Match(pr) {
			return true
		}
	}
	return false
}

func height(s *state.State) uint64 {
	h, _ := s.Height()
	return h
}

func Test_Network(t *testing.T) {
	founder := newWallet(t)
	recipient := newWallet(t)
	miner := newWallet(t)

	g := genesis.Default()
	g.Founder = founder.Address()

	ctx := context.Background()

	a := newNode(t, "node_a", g, miner.Address())
	b := newNode(t, "node_b", g, miner.Address())

	// -------------------------------------------------------------------------
	// Join.

	require.NoError(t, b.JoinNetwork(ctx, a.Self()))

	require.Eventually(t, func() bool { return hasPeer(a, b.Self()) }, wait, tick, "bootstrap should add the joiner")
	require.Eventually(t, func() bool { return hasPeer(b, a.Self()) }, wait, tick, "joiner should add the bootstrap node")
	require.Eventually(t, func() bool { return b.ActivePeers() == 1 }, wait, tick, "handshake should establish the connection")

	// -------------------------------------------------------------------------
	// Submit: a votes on b's transaction.

	tx, err := founder.NewTransaction(recipient.Address(), 50)
	require.NoError(t, err)

	status, err := b.SubmitTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, consensus.Valid, status)
	require.Equal(t, 1, b.PendingCount())

	balance, err := b.BalanceOf(founder.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(9950), balance, "pending transfer should count toward the balance")

	_, err = b.SubmitTransaction(ctx, tx)
	require.Error(t, err, "a known transaction can't be submitted twice")

	// -------------------------------------------------------------------------
	// Share and mine.

	b.NetSendTxToPeers(ctx, tx)
	require.Eventually(t, func() bool { return a.PendingCount() == 1 }, wait, tick, "validated transaction should reach the peer pool")

	block, err := b.MineBlock(ctx, miner.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Header.Index)
	assert.Equal(t, 0, b.PendingCount())

	require.Eventually(t, func() bool { return height(a) == 2 }, wait, tick, "mined block should reach the peer")
	require.Eventually(t, func() bool { return a.PendingCount() == 0 }, wait, tick, "mined transactions should leave the peer pool")

	for addr, exp := range map[string]int64{founder.Address(): 9950, recipient.Address(): 50, miner.Address(): 10} {
		got, err := a.BalanceOf(addr)
		require.NoError(t, err)
		assert.Equal(t, exp, got, "balance of %s", addr)
	}

	_, err = b.MineBlock(ctx, miner.Address())
	require.ErrorIs(t, err, database.ErrNoTransactions)

	// -------------------------------------------------------------------------
	// A new node bootstraps from a and receives the chain.

	c := newNode(t, "node_c", g, miner.Address())
	require.NoError(t, c.JoinNetwork(ctx, a.Self()))

	require.Eventually(t, func() bool { return height(c) == 2 }, wait, tick, "joiner should adopt the chain snapshot")
	require.Eventually(t, func() bool { return hasPeer(c, b.Self()) }, wait, tick, "joiner should learn the bootstrap node's peers")
	require.Eventually(t, func() bool { return hasPeer(b, c.Self()) }, wait, tick, "peers should accept the joiner's regular handshake")

	blocksA, err := a.Blocks()
	require.NoError(t, err)
	blocksC, err := c.Blocks()
	require.NoError(t, err)
	assert.Equal(t, blocksA[1].Hash(), blocksC[1].Hash())
}

func Test_RegularJoin(t *testing.T) {
	founder := newWallet(t)
	g := genesis.Default()
	g.Founder = founder.Address()

	ctx := context.Background()

	a := newNode(t, "node_a", g, founder.Address())

	tx, err := founder.NewTransaction(newWallet(t).Address(), 5)
	require.NoError(t, err)

	status, err := a.SubmitTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, consensus.Valid, status)

	_, err = a.MineBlock(ctx, founder.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(2), height(a))

	b := newNode(t, "node_b", g, founder.Address())
	require.NoError(t, b.ConnectPeer(ctx, a.Self()))

	require.Eventually(t, func() bool { return height(b) == 2 }, wait, tick, "regular joiner should adopt the chain snapshot")
	require.Eventually(t, func() bool { return hasPeer(a, b.Self()) }, wait, tick, "peer should add the regular joiner")

	blocksA, err := a.Blocks()
	require.NoError(t, err)
	blocksB, err := b.Blocks()
	require.NoError(t, err)
	assert.Equal(t, blocksA[1].Hash(), blocksB[1].Hash())

	c := newNode(t, "node_c", g, founder.Address())
	require.NoError(t, a.ConnectPeer(ctx, c.Self()))

	require.Eventually(t, func() bool { return hasPeer(c, a.Self()) }, wait, tick, "shorter node should accept the join")
	assert.Equal(t, uint64(2), height(a), "a shorter snapshot should not replace the chain")
}

func Test_Rejected(t *testing.T) {
	founder := newWallet(t)
	g := genesis.Default()
	g.Founder = founder.Address()

	a := newNode(t, "node_a", g, founder.Address())

	tx, err := founder.NewTransaction(newWallet(t).Address(), 20000)
	require.NoError(t, err)

	_, err = a.SubmitTransaction(context.Background(), tx)
	require.ErrorIs(t, err, state.ErrInsufficientFunds)

	tx, err = founder.NewTransaction(newWallet(t).Address(), 10)
	require.NoError(t, err)
	tx.Amount = 11

	status, err := a.SubmitTransaction(context.Background(), tx)
	require.ErrorIs(t, err, database.ErrValidation)
	assert.Equal(t, consensus.Invalid, status)
}

// client is a bare transport used to talk to a node directly.
type client struct {
	tr     *p2p.Transport
	frames chan message.Envelope
}

func newClient(t *testing.T) *client {
	t.Helper()

	cl := client{frames: make(chan message.Envelope, 16)}

	tr, err := p2p.New(p2p.Config{
		Host: "127.0.0.1:0",
		Handler: func(c *p2p.Conn, frame []byte) error {
			env, err := message.Decode(frame)
			if err != nil {
				return err
			}
			cl.frames <- env
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, tr.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tr.Shutdown(ctx)
	})

	cl.tr = tr

	return &cl
}

func (cl *client) send(t *testing.T, to peer.Peer, typ message.Type, payload any) {
	t.Helper()

	data, err := message.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, cl.tr.Send(context.Background(), to.Addr(), data))
}

func (cl *client) next(t *testing.T) message.Envelope {
	t.Helper()

	select {
	case env := <-cl.frames:
		return env
	case <-time.After(wait):
		t.Fatalf("Should receive a reply.")
	}

	return message.Envelope{}
}

func Test_Reconciliation(t *testing.T) {
	founder := newWallet(t)
	g := genesis.Default()
	g.Founder = founder.Address()

	a := newNode(t, "node_a", g, founder.Address())
	cl := newClient(t)
	self := peer.New("127.0.0.1", 1)

	blocks, err := a.Blocks()
	require.NoError(t, err)
	genesisHash := blocks[0].Hash()

	t.Log("unknown anchor hash")
	{
		cl.send(t, a.Self(), message.TypeChainRequest, message.SyncRequest{Broadcaster: self, LatestHash: "feed"})

		env := cl.next(t)
		require.Equal(t, message.TypeTestMessage, env.Type)

		var msg message.TestMessage
		require.NoError(t, env.ParsePayload(&msg))
		assert.Equal(t, message.UnknownBlockHash, msg.Message)
	}

	t.Log("unknown message types are dropped and the connection stays open")
	{
		require.NoError(t, cl.tr.Send(context.Background(), a.Self().Addr(), []byte(`{"type":"GOSSIP","version":1,"payload":{}}`)))
		cl.send(t, a.Self(), message.TypeChainRequest, message.SyncRequest{Broadcaster: self, LatestHash: genesisHash})

		env := cl.next(t)

		var msg message.TestMessage
		require.NoError(t, env.ParsePayload(&msg))
		assert.Equal(t, message.NoMissingBlocks, msg.Message)
	}

	t.Log("missing blocks are pushed one at a time")
	{
		tx, err := founder.NewTransaction(newWallet(t).Address(), 5)
		require.NoError(t, err)

		_, err = a.SubmitTransaction(context.Background(), tx)
		require.NoError(t, err)

		cl.send(t, a.Self(), message.TypeTxRequest, message.SyncRequest{Broadcaster: self, LatestHash: database.EmptyPool})

		env := cl.next(t)
		require.Equal(t, message.TypeNewTransaction, env.Type)

		var ntx message.NewTransaction
		require.NoError(t, env.ParsePayload(&ntx))
		assert.Equal(t, message.TxValidated, ntx.Status)
		assert.Equal(t, tx.TxHash, ntx.Transaction.TxHash)

		_, err = a.MineBlock(context.Background(), founder.Address())
		require.NoError(t, err)

		cl.send(t, a.Self(), message.TypeChainRequest, message.SyncRequest{Broadcaster: self, LatestHash: genesisHash})

		env = cl.next(t)
		require.Equal(t, message.TypeNewBlock, env.Type)

		var nb message.NewBlock
		require.NoError(t, env.ParsePayload(&nb))
		assert.Equal(t, uint64(1), nb.Block.Index)
	}

	t.Log("votes are answered on the originating connection")
	{
		tx, err := founder.NewTransaction(newWallet(t).Address(), 5)
		require.NoError(t, err)
		tx.Amount = 6

		cl.send(t, a.Self(), message.TypeNewTransaction, message.NewTransaction{Broadcaster: self, ValidationID: 7, Status: message.TxUnvalidated, Transaction: tx})

		env := cl.next(t)
		require.Equal(t, message.TypeTransactionValidation, env.Type)

		var vote message.TransactionValidation
		require.NoError(t, env.ParsePayload(&vote))
		assert.Equal(t, uint64(7), vote.ValidationID)
		assert.False(t, vote.IsValid)
		assert.Equal(t, "node_a", vote.Validator)
	}
}
