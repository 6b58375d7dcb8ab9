// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/ledgernode/business/web/errs"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/signature"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
	"github.com/ardanlabs/ledgernode/foundation/events"
	"github.com/ardanlabs/ledgernode/foundation/nameservice"
	"github.com/ardanlabs/ledgernode/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints for wallets and dashboards.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	return h.Evts.Stream(ctx, c, v.TraceID, time.Second)
}

// Status returns a summary of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st, err := h.State.Status()
	if err != nil {
		return errs.Ledger(err)
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Balance returns the balance for the address or wallet name.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := h.NS.Resolve(web.Param(r, "address"))
	if !signature.IsAddress(address) {
		return errs.NewTrusted(errors.New("invalid address"), http.StatusBadRequest)
	}

	bal, err := h.State.BalanceOf(address)
	if err != nil {
		return errs.Ledger(err)
	}

	resp := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: bal,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Height returns the number of blocks in the chain.
func (h Handlers) Height(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st, err := h.State.Status()
	if err != nil {
		return errs.Ledger(err)
	}

	resp := height{
		Height:     st.Height,
		LatestHash: st.LatestHash,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns the chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks, err := h.State.Blocks()
	if err != nil {
		return errs.Ledger(err)
	}

	data := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		data[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, data, http.StatusOK)
}

// Peers returns the known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := peers{
		Self:   h.State.Self(),
		Active: h.State.ActivePeers(),
		Peers:  h.State.PeerList(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Pending returns the pending pool in arrival order.
func (h Handlers) Pending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pending, err := h.State.PendingSnapshot()
	if err != nil {
		return errs.Ledger(err)
	}

	trans := make([]tx, len(pending))
	for i, tran := range pending {
		trans[i] = tx{
			TxHash:        tran.TxHash,
			Sender:        tran.Sender,
			SenderName:    h.NS.Lookup(tran.Sender),
			Recipient:     tran.Recipient,
			RecipientName: h.NS.Lookup(tran.Recipient),
			Amount:        tran.Amount,
			Signature:     tran.Signature,
		}
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction runs a signed wallet transaction through the network
// vote and reports the outcome.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ntx newTx
	if err := web.Decode(r, &ntx); err != nil {
		return errs.BadRequest(err)
	}
	tran := ntx.toTx()

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", tran.TxHash, "sender", tran.Sender, "recipient", tran.Recipient, "amount", tran.Amount)

	status, err := h.State.SubmitTransaction(ctx, tran)
	if err != nil {
		return errs.Ledger(err)
	}

	resp := submitResult{
		TxHash: tran.TxHash,
		Status: string(status),
	}

	switch status {
	case consensus.Valid:
		return web.Respond(ctx, w, resp, http.StatusOK)
	case consensus.Invalid:
		return web.Respond(ctx, w, resp, http.StatusUnprocessableEntity)
	}

	return web.Respond(ctx, w, resp, http.StatusGatewayTimeout)
}
