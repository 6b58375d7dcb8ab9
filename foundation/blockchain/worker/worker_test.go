package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(t *testing.T, nodeID string, g genesis.Genesis, miner string, bootstrap ...peer.Peer) *state.State {
	t.Helper()

	ev := func(v string, args ...any) {
		t.Logf(nodeID+": "+v, args...)
	}

	db := database.New(g, memory.New(), ev)
	_, err := db.Genesis(context.Background())
	require.NoError(t, err)

	st, err := state.New(state.Config{
		NodeID:            nodeID,
		Host:              "127.0.0.1:0",
		Beneficiary:       miner,
		Genesis:           g,
		Database:          db,
		ValidationTimeout: 5 * time.Second,
		EvHandler:         ev,
	})
	require.NoError(t, err)
	require.NoError(t, st.Start())

	worker.Run(st, worker.Config{
		Bootstrap:         bootstrap,
		HeartbeatInterval: 50 * time.Millisecond,
	}, ev)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, st.Shutdown(ctx))
	})

	return st
}

func Test_MineAndShare(t *testing.T) {
	founder, err := wallet.Generate()
	require.NoError(t, err)
	recipient, err := wallet.Generate()
	require.NoError(t, err)
	miner, err := wallet.Generate()
	require.NoError(t, err)

	g := genesis.Default()
	g.Founder = founder.Address()
	g.TransPerBlock = 1

	// Both nodes pay the same beneficiary so a block either of them mines
	// over the same pool is the same block.
	a := newNode(t, "node_a", g, miner.Address())
	b := newNode(t, "node_b", g, miner.Address(), a.Self())

	require.Eventually(t, func() bool { return b.ActivePeers() == 1 }, 10*time.Second, 20*time.Millisecond)

	tx, err := founder.NewTransaction(recipient.Address(), 50)
	require.NoError(t, err)

	status, err := b.SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, consensus.Valid, status)

	// Both nodes may start mining the shared transaction. Whichever block
	// lands first wins and the other attempt is cancelled or rejected.
	height := func(st *state.State) uint64 {
		h, _ := st.Height()
		return h
	}

	require.Eventually(t, func() bool { return height(a) == 2 && height(b) == 2 }, 20*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return a.PendingCount() == 0 && b.PendingCount() == 0 }, 10*time.Second, 20*time.Millisecond)

	blocksA, err := a.Blocks()
	require.NoError(t, err)
	blocksB, err := b.Blocks()
	require.NoError(t, err)
	require.Equal(t, blocksA[1].Hash(), blocksB[1].Hash(), "nodes should agree on the mined block")

	got, err := b.BalanceOf(recipient.Address())
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
}

func Test_JoinCatchUp(t *testing.T) {
	founder, err := wallet.Generate()
	require.NoError(t, err)

	g := genesis.Default()
	g.Founder = founder.Address()
	g.TransPerBlock = 100

	a := newNode(t, "node_a", g, founder.Address())

	// Mine a block before anyone else joins.
	tx, err := founder.NewTransaction(founder.Address(), 1)
	require.NoError(t, err)
	_, err = a.SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	_, err = a.MineBlock(context.Background(), founder.Address())
	require.NoError(t, err)

	b := newNode(t, "node_b", g, founder.Address(), a.Self())

	require.Eventually(t, func() bool {
		h, _ := b.Height()
		return h == 2
	}, 10*time.Second, 20*time.Millisecond, "joiner should catch up with the bootstrap chain")
}
