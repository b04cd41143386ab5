// Package fieldhash represents the field-element layer that the real node
// gets from its SNARK proving system. That system is explicitly out of
// scope for this core (see SPEC_FULL.md REDESIGN FLAGS); fieldhash defines
// the narrow surface the rest of the node depends on so any field-arithmetic
// backend can be substituted without touching the tree or object packages.
package fieldhash

import "encoding/hex"

// Size is the byte width of a field element on the wire and on disk.
const Size = 32

// Element is an opaque field-element value. Construction and arithmetic are
// left to a Provider; Element itself only carries bytes.
type Element [Size]byte

// Zero is the additive identity.
var Zero Element

func (e Element) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, e[:])
	return out
}

func (e Element) IsZero() bool {
	return e == Zero
}

func (e Element) String() string {
	return hex.EncodeToString(e[:])
}

// FromBytes copies up to Size bytes from b into a new Element, left-padding
// with zeros if b is shorter. It does not reduce the value modulo the field
// prime; callers that need a value guaranteed to be in-field should call
// Normalize via a Provider.
func FromBytes(b []byte) Element {
	var e Element
	if len(b) >= Size {
		copy(e[:], b[len(b)-Size:])
	} else {
		copy(e[Size-len(b):], b)
	}
	return e
}

// Equal reports whether two elements have the same byte representation.
func Equal(a, b Element) bool {
	return a == b
}
