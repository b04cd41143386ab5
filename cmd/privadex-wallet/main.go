// Command privadex-wallet runs the billet ledger against a local store,
// the wallet-side counterpart to privadex-node.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"privadex.dev/node/billet"
	"privadex.dev/node/config"
	"privadex.dev/node/crypto"
	"privadex.dev/node/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := config.DefaultWalletConfig()
	cfg := defaults

	fs := flag.NewFlagSet("privadex-wallet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "wallet data directory")
	fs.StringVar(&cfg.NodeAddr, "node", defaults.NodeAddr, "node Transact address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	loaded, err := config.LoadWallet(cfg)
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

	db, err := store.Open(filepath.Join(cfg.DataDir, "wallet.db"))
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer db.Close()

	_ = billet.New(db, crypto.DevStdCryptoProvider{})

	logger.Info("privadex-wallet ready", "datadir", cfg.DataDir, "node", cfg.NodeAddr)
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
