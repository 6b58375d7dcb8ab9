package worker

// peerOperations handles heartbeats and finding new peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.heartbeat.C:
			if !w.isShutdown() {
				w.state.NetSendHeartbeat(w.ctx)
			}
		case <-w.peerUpdates.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation asks the known peers for their peer lists.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	w.state.NetRequestPeers(w.ctx)
}
