// Package rendezvous implements the outbound peer-discovery client
// described in SPEC_FULL.md §6.2: composing the T/R/B/W query string,
// proving work over it, dialing a randomly chosen rendezvous server through
// the local anonymity-network proxy, and parsing its JSON reply.
package rendezvous

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"privadex.dev/node/object"
)

// Config mirrors the original implementation's g_params fields this client
// needs (hostdir.cpp's PrepareQuery/QueryServer): a list of candidate
// rendezvous hostnames, the local SOCKS proxy address, the PoW difficulty,
// and the magic-nonce short-circuit.
type Config struct {
	Servers            []string // candidate rendezvous hostnames, e.g. "abc123.onion:80"
	ProxyAddr          string   // local anonymity-network proxy, e.g. "127.0.0.1:9050"
	RelayHostname      string   // this node's own relay hostname, omitted from the query if empty
	BlockserveHostname string   // this node's own blockserve hostname, omitted if empty
	Difficulty         int      // rendezvous_server_difficulty: leading zero bits required
	MagicNonce         uint64   // rendezvous_magic_nonce: nonzero short-circuits the PoW search
	Timeout            time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

// Result is the parsed reply, with the node's own hostnames already removed
// (spec.md §6.2: "removes any instance of its own hostnames").
type Result struct {
	Relay []string
	Block []string
}

type wireReply struct {
	Relay []string `json:"Relay"`
	Block []string `json:"Block"`
}

// Client queries rendezvous servers for peer hostnames.
type Client struct {
	cfg    Config
	hasher object.PowHasher
	dial   func(network, addr string) (net.Conn, error)
}

// New constructs a Client, wiring a SOCKS5 dialer through cfg.ProxyAddr —
// the concrete stand-in this repository uses for "the anonymity-network
// proxy", per spec.md §1's framing of it as "a transport that accepts a
// SOCKS-like address and byte stream".
func New(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("rendezvous: no servers configured")
	}
	if cfg.ProxyAddr == "" {
		return nil, fmt.Errorf("rendezvous: no proxy address configured")
	}
	dialer, err := proxy.SOCKS5("tcp", cfg.ProxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: build SOCKS5 dialer: %w", err)
	}
	return &Client{cfg: cfg, hasher: object.SHA3PowHasher{}, dial: dialer.Dial}, nil
}

// pickServer chooses a server uniformly at random, the same
// any-server-will-do selection as the original's CCPseudoRandom-indexed
// pick in HostDir::PrepareQuery.
func (c *Client) pickServer() string {
	return c.cfg.Servers[mrand.IntN(len(c.cfg.Servers))]
}

// buildQuery composes the T/R/B lines, searches for a nonce satisfying the
// PoW (or short-circuits on a nonzero MagicNonce), and appends the W line
// and QRB terminator, per spec.md §6.2's wire format.
func (c *Client) buildQuery(now time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "T:%d\n", now.Unix()/600)
	if c.cfg.RelayHostname != "" {
		fmt.Fprintf(&b, "R:%s\n", c.cfg.RelayHostname)
	}
	if c.cfg.BlockserveHostname != "" {
		fmt.Fprintf(&b, "B:%s\n", c.cfg.BlockserveHostname)
	}
	trb := b.String()

	nonce := c.cfg.MagicNonce
	if nonce == 0 {
		var err error
		nonce, err = findPowNonce(c.hasher, []byte(trb), c.cfg.Difficulty)
		if err != nil {
			return "", err
		}
	}

	b.WriteString("W:" + strconv.FormatUint(nonce, 10) + "\n")
	b.WriteString("QRB")
	b.WriteByte(0)
	return b.String(), nil
}

// findPowNonce brute-forces a nonce such that hash(preimage||nonce) meets
// difficulty, mirroring object.CheckPow's target comparison over the
// T/R/B lines instead of a transaction body (spec.md §6.2: "computes a PoW
// over the T/R/B/W lines meeting rendezvous_server_difficulty").
func findPowNonce(hasher object.PowHasher, preimage []byte, difficulty int) (uint64, error) {
	if difficulty <= 0 {
		return randomNonce()
	}
	for attempt := 0; attempt < 50_000_000; attempt++ {
		nonce, err := randomNonce()
		if err != nil {
			return 0, err
		}
		candidate := append(append([]byte(nil), preimage...), []byte(strconv.FormatUint(nonce, 10))...)
		if err := object.CheckPow(hasher, candidate, difficulty); err == nil {
			return nonce, nil
		}
	}
	return 0, fmt.Errorf("rendezvous: failed to find a PoW nonce after too many attempts")
}

func randomNonce() (uint64, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 63))
	if err != nil {
		return 0, fmt.Errorf("rendezvous: generate nonce: %w", err)
	}
	return n.Uint64(), nil
}

// Query dials a randomly chosen rendezvous server through the configured
// proxy, sends the PoW-stamped query, and parses the JSON reply, with the
// node's own hostnames stripped from the result.
func (c *Client) Query() (*Result, error) {
	query, err := c.buildQuery(time.Now())
	if err != nil {
		return nil, err
	}

	server := c.pickServer()
	conn, err := c.dial("tcp", server)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: dial %s: %w", server, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.cfg.timeout()))

	if _, err := conn.Write([]byte(query)); err != nil {
		return nil, fmt.Errorf("rendezvous: send query: %w", err)
	}

	raw, err := readNulTerminated(conn)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: read reply: %w", err)
	}

	var wire wireReply
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("rendezvous: parse reply: %w", err)
	}

	return &Result{
		Relay: removeSelf(wire.Relay, c.cfg.RelayHostname),
		Block: removeSelf(wire.Block, c.cfg.BlockserveHostname),
	}, nil
}

func readNulTerminated(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	raw, err := r.ReadBytes(0)
	if err != nil && len(raw) == 0 {
		return nil, err
	}
	return trimNul(raw), nil
}

func trimNul(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == 0 {
		return b[:n-1]
	}
	return b
}

// removeSelf drops every occurrence of self from names, per spec.md §6.2:
// "removes any instance of its own hostnames from the returned lists."
func removeSelf(names []string, self string) []string {
	if self == "" {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != self {
			out = append(out, n)
		}
	}
	return out
}
