// Command privadex-node runs the Transact ingress server, the commitment
// tree engine, and the exchange request book as a single process, the way
// cmd/rubin-node wires node.Miner/node.SyncEngine together.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"privadex.dev/node/book"
	"privadex.dev/node/config"
	"privadex.dev/node/fieldhash"
	"privadex.dev/node/ingress"
	"privadex.dev/node/rendezvous"
	"privadex.dev/node/store"
	"privadex.dev/node/tree"
	"privadex.dev/node/validator"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := config.DefaultNodeConfig()
	cfg := defaults

	fs := flag.NewFlagSet("privadex-node", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	fs.StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "Transact bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.BoolVar(&cfg.Testnet, "testnet", defaults.Testnet, "enable testnet rules (mint transactions accepted)")
	fs.IntVar(&cfg.ValidatorWorkers, "validator-workers", defaults.ValidatorWorkers, "validator worker pool size (0 = GOMAXPROCS)")
	fs.IntVar(&cfg.ValidatorQueueSize, "validator-queue-size", defaults.ValidatorQueueSize, "per-priority validator queue depth (0 = default)")
	fs.BoolVar(&cfg.Rendezvous.Enabled, "rendezvous", defaults.Rendezvous.Enabled, "enable rendezvous peer discovery at startup")
	fs.StringVar(&cfg.Rendezvous.ProxyAddr, "rendezvous-proxy", defaults.Rendezvous.ProxyAddr, "SOCKS5 proxy address for rendezvous queries")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	loaded, err := config.LoadNode(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	cfg = loaded

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	if *dryRun {
		fmt.Fprintf(stdout, "%+v\n", cfg)
		return 0
	}

	db, err := store.Open(filepath.Join(cfg.DataDir, "node.db"))
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer db.Close()

	treeEngine, err := tree.New(db, fieldhash.SHA3Provider{})
	if err != nil {
		logger.Error("init tree engine", "error", err)
		return 1
	}

	bk, err := book.New(db)
	if err != nil {
		logger.Error("init exchange book", "error", err)
		return 1
	}

	netParams := cfg.NetParams()
	ingressServer, err := ingress.New(db, treeEngine, bk, netParams, nil)
	if err != nil {
		logger.Error("init ingress server", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The validator queue and the ingress server are circularly dependent
	// (the queue needs the server as its DoneHandler; the server needs the
	// queue to enqueue state-changing requests), so the queue's Service is
	// started first and the resulting Queue wired into the server before
	// the server itself starts accepting connections.
	validatorService := validator.NewService(noopValidator{}, ingressServer, nil, validator.Config{
		Workers:   cfg.ValidatorWorkers,
		QueueSize: cfg.ValidatorQueueSize,
	})
	if err := validatorService.Start(ctx); err != nil {
		logger.Error("start validator service", "error", err)
		return 1
	}
	defer validatorService.WaitForShutdown()
	defer validatorService.StartShutdown()

	ingressServer.SetValidator(validatorService.Queue())

	ingressService := ingress.NewService(ingressServer, cfg.BindAddr)
	if err := ingressService.Start(ctx); err != nil {
		logger.Error("start ingress service", "error", err)
		return 1
	}
	defer ingressService.WaitForShutdown()
	defer ingressService.StartShutdown()

	logger.Info("privadex-node listening", "addr", cfg.BindAddr, "testnet", cfg.Testnet)

	if cfg.Rendezvous.Enabled {
		go runRendezvous(ctx, logger, cfg.Rendezvous)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return 0
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runRendezvous(ctx context.Context, logger *slog.Logger, cfg config.RendezvousConfig) {
	client, err := rendezvous.New(rendezvous.Config{
		Servers:            cfg.Servers,
		ProxyAddr:          cfg.ProxyAddr,
		RelayHostname:      cfg.RelayHostname,
		BlockserveHostname: cfg.BlockserveHostname,
		Difficulty:         cfg.Difficulty,
		MagicNonce:         cfg.MagicNonce,
	})
	if err != nil {
		logger.Error("rendezvous init", "error", err)
		return
	}
	result, err := client.Query()
	if err != nil {
		logger.Warn("rendezvous query failed", "error", err)
		return
	}
	logger.Info("rendezvous peers discovered", "relay", result.Relay, "block", result.Block)
	_ = ctx
}

// noopValidator is the Validator used until a real SNARK verifier is
// wired in (out of scope per SPEC_FULL.md §1): AlreadyValid reports false,
// so every object is queued, and Validate returns 0 on a worker, so each
// object gets its reply through the asynchronous HandleValidateDone
// callback. The ingress pipeline and reply contract can thus be exercised
// end to end without a verifier.
type noopValidator struct{}

func (noopValidator) Validate(object any) (int, error) { return validator.ResultQueued, nil }

func (noopValidator) AlreadyValid(object any) bool { return false }
