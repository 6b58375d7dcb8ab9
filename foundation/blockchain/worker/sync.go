package worker

import (
	"context"
	"time"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
)

// syncTimeout bounds the connection attempts made during the startup sync.
const syncTimeout = 30 * time.Second

// Sync joins the network through the bootstrap nodes, greets the peers
// remembered from the last run, and asks every peer for the blocks and
// pending transactions this node is missing.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	ctx, cancel := context.WithTimeout(w.ctx, syncTimeout)
	defer cancel()

	bootstrap := make(map[peer.Peer]bool, len(w.bootstrap))
	for _, pr := range w.bootstrap {
		bootstrap[pr] = true

		if err := w.state.JoinNetwork(ctx, pr); err != nil {
			w.evHandler("worker: sync: joinNetwork: %s: ERROR: %s", pr, err)
		}
	}

	for _, pr := range w.state.PeerList() {
		if bootstrap[pr] {
			continue
		}

		if err := w.state.ConnectPeer(ctx, pr); err != nil {
			w.evHandler("worker: sync: connectPeer: %s: ERROR: %s", pr, err)
		}
	}

	if err := w.state.NetRequestSync(ctx); err != nil {
		w.evHandler("worker: sync: requestSync: ERROR: %s", err)
	}
}
