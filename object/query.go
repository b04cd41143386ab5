package object

// AddressQuery is the decoded body of a TX_QUERY_ADDRESS request
// (spec.md §4.D.2): "(blockchain, address, commit_start, maxret≤20)".
type AddressQuery struct {
	Blockchain  uint64
	Address     [32]byte
	CommitStart uint64
	MaxRet      uint16
}

func DecodeAddressQuery(body []byte) (*AddressQuery, error) {
	c := newCursor(body)
	bc, err := c.readU64LE()
	if err != nil {
		return nil, err
	}
	addrBytes, err := c.readExact(32)
	if err != nil {
		return nil, err
	}
	start, err := c.readU64LE()
	if err != nil {
		return nil, err
	}
	maxret, err := c.readU16LE()
	if err != nil {
		return nil, err
	}
	if maxret == 0 || maxret > 20 {
		return nil, protoErr(ErrStructuralInvalid, "maxret out of range")
	}
	q := &AddressQuery{Blockchain: bc, CommitStart: start, MaxRet: maxret}
	copy(q.Address[:], addrBytes)
	return q, nil
}

// InputsQuery is the decoded body of a TX_QUERY_INPUTS request: up to
// TX_MAXINPATH commitnums.
type InputsQuery struct {
	Commitnums []uint64
}

func DecodeInputsQuery(body []byte, maxInPath int) (*InputsQuery, error) {
	c := newCursor(body)
	count, err := c.readU16LE()
	if err != nil {
		return nil, err
	}
	if int(count) > maxInPath {
		return nil, protoErr(ErrTooManyObjects, "too many query objects")
	}
	out := make([]uint64, 0, count)
	for i := uint16(0); i < count; i++ {
		v, err := c.readU64LE()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return &InputsQuery{Commitnums: out}, nil
}

// SerialQuery is the decoded body of a TX_QUERY_SERIAL request: up to
// TX_MAXIN serials (32-byte big-endian bigints).
type SerialQuery struct {
	Serials [][32]byte
}

func DecodeSerialQuery(body []byte, maxIn int) (*SerialQuery, error) {
	c := newCursor(body)
	count, err := c.readU16LE()
	if err != nil {
		return nil, err
	}
	if int(count) > maxIn {
		return nil, protoErr(ErrTooManyObjects, "too many query objects")
	}
	out := make([][32]byte, 0, count)
	for i := uint16(0); i < count; i++ {
		b, err := c.readBEBigint(32)
		if err != nil {
			return nil, err
		}
		var s [32]byte
		copy(s[:], b)
		out = append(out, s)
	}
	return &SerialQuery{Serials: out}, nil
}

// DecodeU64Query decodes the single-uint64-key body shared by
// TX_QUERY_XMATCH_OBJID/_REQNUM/_MATCHNUM (spec.md §4.E): each looks up one
// row by a different key space, but the wire body is the same 8-byte field.
func DecodeU64Query(body []byte) (uint64, error) {
	c := newCursor(body)
	return c.readU64LE()
}

// XreqsQueryFlags, per spec.md §4.E.
type XreqsQueryFlags uint32

const (
	XreqsFlagOnlyPendingMatched    XreqsQueryFlags = 1 << 0
	XreqsFlagIncludePendingMatched XreqsQueryFlags = 1 << 1
)

// XreqsQuery is the decoded body of a TX_QUERY_XREQS request, per
// spec.md §4.E's input list.
type XreqsQuery struct {
	XcxType      uint16
	MinAmount    []byte // big-endian bigint
	MaxAmount    []byte
	RateFp       UniFloat
	BaseAsset    uint64
	QuoteAsset   uint64
	ForeignAsset string // trailing UTF-8 tail
	MaxRet       uint16
	Offset       uint32
	Flags        XreqsQueryFlags
}

func DecodeXreqsQuery(body []byte) (*XreqsQuery, error) {
	c := newCursor(body)
	xcxType, err := c.readU16LE()
	if err != nil {
		return nil, err
	}
	minAmt, err := c.readBEBigint(16)
	if err != nil {
		return nil, err
	}
	maxAmt, err := c.readBEBigint(16)
	if err != nil {
		return nil, err
	}
	rateRaw, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	baseAsset, err := c.readU64LE()
	if err != nil {
		return nil, err
	}
	quoteAsset, err := c.readU64LE()
	if err != nil {
		return nil, err
	}
	maxret, err := c.readU16LE()
	if err != nil {
		return nil, err
	}
	if maxret == 0 || maxret > 20 {
		return nil, protoErr(ErrStructuralInvalid, "maxret out of range")
	}
	offset, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	flags, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	if flags&uint32(XreqsFlagOnlyPendingMatched) != 0 && flags&uint32(XreqsFlagIncludePendingMatched) != 0 {
		return nil, protoErr(ErrStructuralInvalid, "ONLY_PENDING_MATCHED and INCLUDE_PENDING_MATCHED are mutually exclusive")
	}
	foreignAsset := string(c.readTail())

	return &XreqsQuery{
		XcxType:      xcxType,
		MinAmount:    minAmt,
		MaxAmount:    maxAmt,
		RateFp:       UniFloat(rateRaw),
		BaseAsset:    baseAsset,
		QuoteAsset:   quoteAsset,
		ForeignAsset: foreignAsset,
		MaxRet:       maxret,
		Offset:       offset,
		Flags:        XreqsQueryFlags(flags),
	}, nil
}
