// Package config holds the node and wallet process configuration, built
// and validated the way the teacher's node.Config/DefaultConfig/
// ValidateConfig trio does it: a plain struct with JSON tags, a
// defaults constructor, and a Load that returns an error rather than
// exiting, so only cmd/*/main.go ever calls os.Exit.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"privadex.dev/node/param"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// NodeConfig is the full configuration for the privadex-node process:
// bind address, data directory, network parameters, and the rendezvous
// and validator settings wired into ingress/validator/rendezvous at
// startup.
type NodeConfig struct {
	DataDir  string `json:"data_dir"`
	BindAddr string `json:"bind_addr"`
	LogLevel string `json:"log_level"`

	Testnet bool `json:"testnet"`

	ValidatorWorkers   int `json:"validator_workers"`
	ValidatorQueueSize int `json:"validator_queue_size"`

	Rendezvous RendezvousConfig `json:"rendezvous"`
}

// RendezvousConfig mirrors rendezvous.Config's JSON-facing fields.
type RendezvousConfig struct {
	Enabled            bool     `json:"enabled"`
	Servers            []string `json:"servers"`
	ProxyAddr          string   `json:"proxy_addr"`
	RelayHostname      string   `json:"relay_hostname"`
	BlockserveHostname string   `json:"blockserve_hostname"`
	Difficulty         int      `json:"difficulty"`
	MagicNonce         uint64   `json:"magic_nonce"`
}

// WalletConfig is the configuration for the privadex-wallet process: its
// own data directory plus the node address it talks to over Transact.
type WalletConfig struct {
	DataDir  string `json:"data_dir"`
	NodeAddr string `json:"node_addr"`
	LogLevel string `json:"log_level"`
}

func DefaultDataDir(leaf string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "." + leaf
	}
	return filepath.Join(home, "."+leaf)
}

// DefaultNodeConfig mirrors a devnet configuration, analogous to the
// teacher's node.DefaultConfig.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		DataDir:            DefaultDataDir("privadex-node"),
		BindAddr:           "0.0.0.0:19111",
		LogLevel:           "info",
		Testnet:            true,
		ValidatorWorkers:   0, // 0 -> validator.defaultConfig picks GOMAXPROCS
		ValidatorQueueSize: 0, // 0 -> validator.defaultConfig picks 256
	}
}

func DefaultWalletConfig() WalletConfig {
	return WalletConfig{
		DataDir:  DefaultDataDir("privadex-wallet"),
		NodeAddr: "127.0.0.1:19111",
		LogLevel: "info",
	}
}

// LoadNode validates cfg and creates its data directory, returning an
// error for the caller to report rather than exiting here.
func LoadNode(cfg NodeConfig) (NodeConfig, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return cfg, errors.New("config: data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return cfg, fmt.Errorf("config: invalid bind_addr: %w", err)
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	if cfg.ValidatorWorkers < 0 {
		return cfg, errors.New("config: validator_workers must be >= 0")
	}
	if cfg.ValidatorQueueSize < 0 {
		return cfg, errors.New("config: validator_queue_size must be >= 0")
	}
	if cfg.Rendezvous.Enabled {
		if len(cfg.Rendezvous.Servers) == 0 {
			return cfg, errors.New("config: rendezvous.servers is required when rendezvous is enabled")
		}
		if strings.TrimSpace(cfg.Rendezvous.ProxyAddr) == "" {
			return cfg, errors.New("config: rendezvous.proxy_addr is required when rendezvous is enabled")
		}
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return cfg, fmt.Errorf("config: create data_dir: %w", err)
	}
	return cfg, nil
}

// LoadWallet validates cfg and creates its data directory.
func LoadWallet(cfg WalletConfig) (WalletConfig, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return cfg, errors.New("config: data_dir is required")
	}
	if err := validateAddr(cfg.NodeAddr); err != nil {
		return cfg, fmt.Errorf("config: invalid node_addr: %w", err)
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return cfg, fmt.Errorf("config: create data_dir: %w", err)
	}
	return cfg, nil
}

// NetParams derives a param.NetParams from the subset of NodeConfig that
// overrides the devnet defaults.
func (c NodeConfig) NetParams() param.NetParams {
	np := param.DefaultNetParams()
	np.Testnet = c.Testnet
	return np
}

func validateLogLevel(level string) error {
	l := strings.ToLower(strings.TrimSpace(level))
	if _, ok := allowedLogLevels[l]; !ok {
		return fmt.Errorf("config: invalid log_level %q", level)
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	return nil
}
