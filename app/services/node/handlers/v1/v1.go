// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/ledgernode/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/ledgernode/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
	"github.com/ardanlabs/ledgernode/foundation/events"
	"github.com/ardanlabs/ledgernode/foundation/nameservice"
	"github.com/ardanlabs/ledgernode/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/balance/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/chain/height", pbl.Height)
	app.Handle(http.MethodGet, version, "/chain/blocks", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers)
	app.Handle(http.MethodGet, version, "/tx/pending", pbl.Pending)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodPost, version, "/tx/broadcast", prv.BroadcastTransaction)
	app.Handle(http.MethodGet, version, "/tx/validation/:id", prv.ValidationStatus)
	app.Handle(http.MethodPost, version, "/mining/mine", prv.MineBlock)
	app.Handle(http.MethodPost, version, "/peers", prv.ConnectPeer)
}
