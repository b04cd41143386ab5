package object

import (
	"encoding/binary"
	"math/big"
	"strconv"

	"golang.org/x/crypto/sha3"

	"privadex.dev/node/param"
)

// PowHasher is the hash function POW is measured against. It is a narrow
// seam (mirrors fieldhash.Provider and crypto.CryptoProvider from the
// teacher) so a production deployment can swap in the real object-id hash
// without touching the framing code.
type PowHasher interface {
	Hash(preimage []byte) [32]byte
}

// SHA3PowHasher is the default, dev-grade hasher.
type SHA3PowHasher struct{}

func (SHA3PowHasher) Hash(preimage []byte) [32]byte {
	var out [32]byte
	h := sha3.Sum256(preimage)
	copy(out[:], h[:])
	return out
}

// difficultyTarget converts a "leading zero bits required" difficulty into
// a big-endian 256-bit target, following the same target-comparison idiom
// as the teacher's consensus.PowCheck/RetargetV1 (hash < target).
func difficultyTarget(difficulty int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	if difficulty <= 0 {
		return new(big.Int).Sub(max, big.NewInt(1))
	}
	if difficulty >= 256 {
		return big.NewInt(0)
	}
	return new(big.Int).Rsh(max, uint(difficulty))
}

// CheckPow verifies hash(preimage) < target(difficulty), per spec.md §4.A:
// "caller computes a nonce such that an internal hash ... meets the given
// difficulty." On failure it returns a *ProtocolError whose Msg already
// carries "<difficulty>" for the reply text
// "ERROR:proof of work failed:<difficulty>".
func CheckPow(hasher PowHasher, preimage []byte, difficulty int) error {
	if difficulty <= 0 {
		return nil
	}
	if hasher == nil {
		hasher = SHA3PowHasher{}
	}
	h := hasher.Hash(preimage)
	hv := new(big.Int).SetBytes(h[:])
	if hv.Cmp(difficultyTarget(difficulty)) >= 0 {
		return protoErr(ErrPowFailed, strconv.Itoa(difficulty))
	}
	return nil
}

// TxPowPreimage builds the object-id preimage for TX-like tags: the hash is
// taken over the full object body (spec.md §4.A: "for TX-like objects, from
// the full object body").
func TxPowPreimage(bodyAfterPow []byte) []byte {
	out := make([]byte, len(bodyAfterPow))
	copy(out, bodyAfterPow)
	return out
}

// QueryPowPreimage builds the preimage for query-like tags: a hash of
// (tag, body_after_pow) (spec.md §4.A).
func QueryPowPreimage(tag Tag, bodyAfterPow []byte) []byte {
	out := make([]byte, 4+len(bodyAfterPow))
	binary.LittleEndian.PutUint32(out[0:4], uint32(tag))
	copy(out[4:], bodyAfterPow)
	return out
}

// DifficultyFor returns the POW difficulty for a request's class, per the
// table in spec.md §4.A.
func DifficultyFor(class Class) int {
	switch class {
	case ClassQueryParams:
		return param.PowDifficultyNone
	case ClassQuery:
		return param.PowDifficultyQuery
	case ClassTx:
		return param.PowDifficultyTx
	case ClassXcxPay:
		return param.PowDifficultyPay
	default:
		return param.PowDifficultyNone
	}
}
