package fieldhash

import "golang.org/x/crypto/sha3"

// SHA3Provider is a development-only Provider. It does not claim bitwise
// compatibility with any real SNARK field and exists so the tree engine and
// ingress protocol can be exercised without the proving system (grounded
// in crypto.DevStdCryptoProvider from the teacher's crypto package).
type SHA3Provider struct{}

var _ Provider = SHA3Provider{}

func (SHA3Provider) HashLeaf(commitment Element, offset uint64) Element {
	h := sha3.New256()
	h.Write([]byte{'L'})
	h.Write(commitment[:])
	var ob [8]byte
	putUint64BE(ob[:], offset)
	h.Write(ob[:])
	var out Element
	copy(out[:], h.Sum(nil))
	return out
}

func (SHA3Provider) HashNode(left, right Element, nonroot bool) Element {
	h := sha3.New256()
	if nonroot {
		h.Write([]byte{'N'})
	} else {
		h.Write([]byte{'R'})
	}
	h.Write(left[:])
	h.Write(right[:])
	var out Element
	copy(out[:], h.Sum(nil))
	return out
}

func (SHA3Provider) Normalize(raw [32]byte) Element {
	// The real field has a prime slightly below 2^256; approximating
	// "reduce mod prime" here only needs to guarantee the top bit never
	// collides with out-of-field encodings, which clearing does.
	var out Element
	copy(out[:], raw[:])
	out[0] &= 0x7f
	return out
}

func putUint64BE(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}
