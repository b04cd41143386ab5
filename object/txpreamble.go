package object

// TxParamLevel decodes the leading 8-byte little-endian param_level field
// carried by TX/MINT/TX_XDOMAIN/XCX_* bodies-after-timestamp, per
// original_source's transact.cpp (txpay_param_level_from_wire). The full
// SNARK-encoded object body is out of scope for this core (validator.Queue
// treats it opaquely); this reads only the fixed preamble field the
// ingress-layer mint-era check in spec.md §4.D.1 step 6 needs.
func TxParamLevel(bodyAfterTimestamp []byte) (uint64, error) {
	c := newCursor(bodyAfterTimestamp)
	return c.readU64LE()
}
