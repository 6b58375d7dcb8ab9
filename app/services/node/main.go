package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/conf/v3/yaml"
	"github.com/ardanlabs/ledgernode/app/services/node/handlers"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/peer"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/state"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/worker"
	"github.com/ardanlabs/ledgernode/foundation/events"
	"github.com/ardanlabs/ledgernode/foundation/logger"
	"github.com/ardanlabs/ledgernode/foundation/nameservice"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:127.0.0.1:8180"`
		}
		Node struct {
			ID                 string        `conf:"help:unique node id, generated when empty"`
			Host               string        `conf:"default:0.0.0.0:9080"`
			Advertise          string        `conf:"help:host:port peers use to reach this node"`
			Bootstrap          []string      `conf:"help:host:port of the nodes to join through"`
			DataDir            string        `conf:"default:zblock/"`
			GenesisFile        string        `conf:"default:zblock/genesis.json"`
			PeersFile          string        `conf:"default:zblock/peers.json"`
			MaxFrameSize       uint64        `conf:"default:33554432"`
			IdleTimeout        time.Duration `conf:"default:30s"`
			ValidationTimeout  time.Duration `conf:"default:30s"`
			HeartbeatInterval  time.Duration `conf:"default:10s"`
			PeerUpdateInterval time.Duration `conf:"default:1m"`
		}
		Miner struct {
			WalletFile string `conf:"default:zblock/wallets/miner.json"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/wallets/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger node",
		},
	}

	// Parse will set the defaults, apply the yaml file when one is named
	// in NODE_CONFIG_FILE and then look for any overriding values in
	// environment variables and command line flags.
	const prefix = "NODE"

	var parsers []conf.Parsers
	if path := os.Getenv("NODE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		parsers = append(parsers, yaml.WithData(data))
	}

	help, err := conf.Parse(prefix, &cfg, parsers...)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Miner Support

	// The miner wallet receives the mining rewards. A node without one
	// creates it on first start.
	miner, err := loadMiner(cfg.Miner.WalletFile)
	if err != nil {
		return fmt.Errorf("unable to load miner wallet: %w", err)
	}
	log.Infow("startup", "status", "miner", "address", miner.Address())

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for addresses. The
	// names come from the wallet file names in the wallets folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load address name service: %w", err)
	}

	for address, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.Node.GenesisFile)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	nodeID := cfg.Node.ID
	if nodeID == "" {
		nodeID = "node_" + strings.Split(uuid.NewString(), "-")[0]
	}

	// A peer set is a collection of known nodes in the network so transactions
	// and blocks can be shared. It starts from the last snapshot this node
	// saved.
	snap, err := peer.Load(cfg.Node.PeersFile)
	if err != nil {
		return fmt.Errorf("unable to load peers: %w", err)
	}
	peerSet := peer.NewPeerSet()
	for _, pr := range snap.Peers {
		peerSet.Add(pr)
	}

	bootstrap := make([]peer.Peer, 0, len(cfg.Node.Bootstrap))
	for _, addr := range cfg.Node.Bootstrap {
		pr, err := peer.Parse(addr)
		if err != nil {
			return err
		}
		bootstrap = append(bootstrap, pr)
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. Events marked for the viewer are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, "viewer:") {
			evts.Send(s)
		}
	}

	storage, err := disk.New(cfg.Node.DataDir)
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	db := database.New(gen, storage, ev)
	if _, err := db.Genesis(context.Background()); err != nil {
		return fmt.Errorf("unable to create genesis block: %w", err)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		NodeID:            nodeID,
		Host:              cfg.Node.Host,
		Advertise:         cfg.Node.Advertise,
		Beneficiary:       miner.Address(),
		Genesis:           gen,
		Database:          db,
		KnownPeers:        peerSet,
		PeersFile:         cfg.Node.PeersFile,
		MaxFrameSize:      cfg.Node.MaxFrameSize,
		IdleTimeout:       cfg.Node.IdleTimeout,
		ValidationTimeout: cfg.Node.ValidationTimeout,
		EvHandler:         ev,
	})
	if err != nil {
		return err
	}

	if err := st.Start(); err != nil {
		return fmt.Errorf("unable to start node: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()
		if err := st.Shutdown(ctx); err != nil {
			log.Errorw("shutdown", "status", "node shutdown", "ERROR", err)
		}
	}()

	// The worker package implements the different workflows such as mining,
	// transaction peer sharing, and heartbeats. The worker will register
	// itself with the state.
	worker.Run(st, worker.Config{
		Bootstrap:          bootstrap,
		HeartbeatInterval:  cfg.Node.HeartbeatInterval,
		PeerUpdateInterval: cfg.Node.PeerUpdateInterval,
	}, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 2)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadMiner loads the miner wallet, generating and saving a new one when
// the file doesn't exist yet.
func loadMiner(path string) (wallet.Wallet, error) {
	w, err := wallet.Load(path)
	if err == nil {
		return w, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return wallet.Wallet{}, err
	}

	if w, err = wallet.Generate(); err != nil {
		return wallet.Wallet{}, err
	}

	if err := w.Save(path); err != nil {
		return wallet.Wallet{}, err
	}

	return w, nil
}
