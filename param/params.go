// Package param holds the net/tx parameter constants named throughout
// SPEC_FULL.md — the values TX_QUERY_PARAMS streams to wallets, plus the
// framing and timing constants the ingress and tree packages depend on.
package param

import (
	"encoding/hex"
	"time"

	"privadex.dev/node/fieldhash"
)

const (
	// TxMerkleDepth is the compile-time commitment tree depth ("TX_MERKLE_DEPTH").
	TxMerkleDepth = 48

	// TxMerkleBytes is the on-disk/wire width of one tree row ("TX_MERKLE_BYTES").
	TxMerkleBytes = 32

	// TxPowSize is the fixed proof-of-work field width in every request frame.
	TxPowSize = 16

	// CCMsgHeaderSize is {size:u32, tag:u32}.
	CCMsgHeaderSize = 8

	// MaxRequestBytes and MaxReplyBytes bound every frame, per spec.md §4.A/§6.1.
	MaxRequestBytes = 64000
	MaxReplyBytes   = 64000

	// TxMaxInPath bounds TX_QUERY_INPUTS's per-request commitnum count.
	TxMaxInPath = 64

	// TxMaxIn bounds TX_QUERY_SERIAL's per-request serial count.
	TxMaxIn = 64

	// UniFloatBits is the wire width of the UniFloat log-float encoding.
	UniFloatBits = 32

	// XreqsMaxRet bounds TX_QUERY_XREQS/TX_QUERY_ADDRESS result pages.
	XreqsMaxRet    = 20
	AddressMaxRet  = 20

	// MintCount and MintAcceptSpan bound the mint era (spec.md §4.D.1).
	MintCount      = 1000
	MintAcceptSpan = 100
)

// Clock allowances, per spec.md §4.A table.
const (
	ClockAllowanceNone         = 0
	ClockAllowanceQueryPast    = 40 * time.Minute
	ClockAllowanceQueryFuture  = 5 * time.Minute
	ClockAllowanceTxPast       = 40 * time.Minute
	ClockAllowanceTxFuture     = 5 * time.Minute
)

// Timeouts, per spec.md §4.D.3/§5.
const (
	TransactTimeout           = 10 * time.Second
	TransactValidationTimeout = 20 * time.Second
)

// POW difficulty classes. Values are "leading zero bits required of the
// object-id hash" — see object/pow.go.
const (
	PowDifficultyNone  = 0
	PowDifficultyQuery = 18
	PowDifficultyTx    = 22
	PowDifficultyPay   = 26 // xcx_pay
)

// DB parameter keys used by the tree engine (store "params" table, subkey 0).
const (
	DBKeyCommitBlockLevel   = "commit_blocklevel"
	DBKeyCommitCommitnumHi  = "commit_commitnum_hi"
	DBKeyCommitNullInput    = "commit_null_input"
)

// NetParams describes the TX_QUERY_PARAMS payload (a subset sufficient to
// drive wallet behavior described in spec.md §4.D.2/§4.G).
type NetParams struct {
	Testnet           bool   `json:"testnet"`
	BlockchainID      string `json:"blockchain_id"` // hex of the chain tag used as the empty-tree root
	MaxNetSec         int64  `json:"max_net_sec"`
	MaxBlockSec       int64  `json:"max_block_sec"`
	AmountBits        int    `json:"amount_bits"`
	DonationPerTxByte int64  `json:"donation_per_tx_byte"`
	ValueMin          uint64 `json:"value_min"`
	ValueMax          uint64 `json:"value_max"`
	DomainCount       int    `json:"domain_count"`
}

// devnetBlockchainID is the chain tag used as the empty-tree root on devnet,
// kept as a fixed 32-byte value rather than a hand-typed hex literal.
var devnetBlockchainID = func() string {
	var raw [32]byte
	raw[31] = 0xc1
	return hex.EncodeToString(raw[:])
}()

// BlockchainIDElement decodes BlockchainID into the field element used as
// the commitment tree's root when the tree is empty (spec.md §4.C).
func (p NetParams) BlockchainIDElement() fieldhash.Element {
	raw, err := hex.DecodeString(p.BlockchainID)
	if err != nil {
		return fieldhash.Zero
	}
	return fieldhash.FromBytes(raw)
}

// DefaultNetParams mirrors a devnet configuration, analogous to the
// teacher's node.DefaultConfig().
func DefaultNetParams() NetParams {
	return NetParams{
		Testnet:           true,
		BlockchainID:      devnetBlockchainID,
		MaxNetSec:         300,
		MaxBlockSec:       3600,
		AmountBits:        128,
		DonationPerTxByte: 10,
		ValueMin:          0,
		ValueMax:          1 << 62,
		DomainCount:       1,
	}
}
