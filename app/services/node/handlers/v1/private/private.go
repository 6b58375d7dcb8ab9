// Package private maintains the group of handlers for the node operator.
package private

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ardanlabs/ledgernode/business/web/errs"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/consensus"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
	"github.com/ardanlabs/ledgernode/foundation/nameservice"
	"github.com/ardanlabs/ledgernode/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// BroadcastTransaction asks the peers to vote on a transaction and returns
// the validation id to poll without waiting for the outcome.
func (h Handlers) BroadcastTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Decode runs the structural and signature checks on the transaction.
	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.BadRequest(err)
	}

	id, err := h.State.BroadcastTransaction(tx)
	if err != nil {
		return errs.Ledger(err)
	}

	h.Log.Infow("broadcast tran", "traceid", v.TraceID, "tx", tx.TxHash, "validationid", id)

	resp := broadcastResult{
		ValidationID: id,
		TxHash:       tx.TxHash,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// ValidationStatus reports the outcome of a validation request. Once the
// request is decided it is dropped and later queries get a 404.
func (h Handlers) ValidationStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseUint(web.Param(r, "id"), 10, 64)
	if err != nil {
		return errs.NewTrusted(errors.New("invalid validation id"), http.StatusBadRequest)
	}

	active := h.State.ActivePeers()

	status, err := h.State.CheckValidationStatus(id)
	if err != nil {
		return errs.Ledger(err)
	}

	votes, err := h.State.ValidationVotes(id)
	if err != nil {
		return errs.Ledger(err)
	}

	if status != consensus.Pending {
		h.State.ForgetValidation(id)
	}

	resp := validationResult{
		ValidationID: id,
		Status:       string(status),
		Votes:        votes,
		ActivePeers:  active,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MineBlock mines the pending pool into a block. The reward goes to the
// address in the request or the node's beneficiary when none is given.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mineRequest
	if r.ContentLength != 0 {
		if err := web.Decode(r, &req); err != nil {
			return errs.BadRequest(err)
		}
	}

	reward := h.State.Beneficiary()
	if req.RewardAddress != "" {
		reward = h.NS.Resolve(req.RewardAddress)
	}

	h.State.Worker().SignalCancelMining()

	block, err := h.State.MineBlock(ctx, reward)
	if err != nil {
		return errs.Ledger(err)
	}

	resp := mineResult{
		Index:        block.Header.Index,
		Hash:         block.Hash(),
		Transactions: len(block.Trans.Values()),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ConnectPeer performs a regular handshake with the specified peer.
func (h Handlers) ConnectPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var np newPeer
	if err := web.Decode(r, &np); err != nil {
		return errs.BadRequest(err)
	}

	if err := h.State.ConnectPeer(ctx, np.toPeer()); err != nil {
		return errs.NewTrusted(err, http.StatusBadGateway)
	}

	return web.Respond(ctx, w, h.State.PeerList(), http.StatusOK)
}
