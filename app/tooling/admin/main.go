// This program performs administrative tasks against a node's data
// directory while the node is stopped.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledgernode/app/tooling/admin/commands"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledgernode/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN", "stderr")
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
	cfg := struct {
		conf.Version
		Args        conf.Args
		DataDir     string `conf:"default:zblock/"`
		GenesisFile string `conf:"default:zblock/genesis.json"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ledger node admin: bals <address>... | blocks | pending",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	gen, err := genesis.Load(cfg.GenesisFile)
	if err != nil {
		return err
	}

	storage, err := disk.New(cfg.DataDir)
	if err != nil {
		return err
	}

	ev := func(v string, args ...any) {
		log.Debugf(v, args...)
	}

	db := database.New(gen, storage, ev)
	defer db.Close()

	return processCommands(cfg.Args, db)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, db *database.Database) error {
	switch args.Num(0) {
	case "bals":
		if err := commands.Balances(os.Stdout, args[1:], db); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "blocks":
		if err := commands.Blocks(os.Stdout, db); err != nil {
			return fmt.Errorf("getting blocks: %w", err)
		}
	case "pending":
		if err := commands.Pending(os.Stdout, db); err != nil {
			return fmt.Errorf("getting pending: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", args.Num(0))
	}

	return nil
}
