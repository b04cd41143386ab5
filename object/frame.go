package object

import (
	"encoding/binary"
	"time"

	"privadex.dev/node/param"
)

// Header is the fixed {size, tag} prefix of every request (spec.md §4.A/§6.1).
type Header struct {
	Size uint32
	Tag  Tag
}

// DecodeHeader parses the first CCMsgHeaderSize bytes of a frame.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < param.CCMsgHeaderSize {
		return Header{}, protoErr(ErrShortRead, "unexpected short read")
	}
	size := binary.LittleEndian.Uint32(b[0:4])
	tag := binary.LittleEndian.Uint32(b[4:8])
	return Header{Size: size, Tag: Tag(tag)}, nil
}

// EncodeHeader is the inverse of DecodeHeader.
func EncodeHeader(h Header) []byte {
	out := make([]byte, param.CCMsgHeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.Size)
	binary.LittleEndian.PutUint32(out[4:8], uint32(h.Tag))
	return out
}

// ValidateFrameSize implements spec.md §4.D.1 step 2: size must lie in
// [header+pow, 64000] and the tag must be recognized.
func ValidateFrameSize(h Header) (Class, error) {
	class, ok := ClassOf(h.Tag)
	if !ok {
		return 0, protoErr(ErrUnrecognizedTag, "unrecognized message type")
	}
	minSize := uint32(param.CCMsgHeaderSize + param.TxPowSize)
	if h.Size < minSize || h.Size > param.MaxRequestBytes {
		return 0, protoErr(ErrSizeFieldInvalid, "message size field invalid")
	}
	return class, nil
}

// Frame is a fully read request: header, POW bytes, and the raw body that
// follows (timestamp + tag-dependent fields).
type Frame struct {
	Header Header
	Pow    [param.TxPowSize]byte
	Body   []byte // everything after the POW field, including the 8-byte timestamp
}

// ParseFrame decodes header+pow+body from a buffer that already holds
// exactly Header.Size bytes (the caller is responsible for the short-read
// and size-field checks against the raw byte count before calling this).
func ParseFrame(raw []byte) (*Frame, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if _, err := ValidateFrameSize(h); err != nil {
		return nil, err
	}
	if uint32(len(raw)) != h.Size {
		return nil, protoErr(ErrSizeFieldInvalid, "message size field invalid")
	}
	f := &Frame{Header: h}
	copy(f.Pow[:], raw[param.CCMsgHeaderSize:param.CCMsgHeaderSize+param.TxPowSize])
	f.Body = raw[param.CCMsgHeaderSize+param.TxPowSize:]
	return f, nil
}

// Timestamp extracts the mandatory 8-byte unix-seconds timestamp that opens
// every body, per spec.md §4.A/§6.1.
func (f *Frame) Timestamp() (time.Time, error) {
	if len(f.Body) < 8 {
		return time.Time{}, protoErr(ErrStructuralInvalid, "missing timestamp")
	}
	sec := binary.LittleEndian.Uint64(f.Body[0:8])
	return time.Unix(int64(sec), 0).UTC(), nil
}

// BodyAfterTimestamp returns the tag-dependent fields following the
// timestamp.
func (f *Frame) BodyAfterTimestamp() []byte {
	if len(f.Body) < 8 {
		return nil
	}
	return f.Body[8:]
}

// clockAllowance returns (past, future) allowances for class, per the
// table in spec.md §4.A ("PARAMS" gets none; queries and tx-likes get
// (40min, 5min)).
func clockAllowance(class Class) (time.Duration, time.Duration) {
	if class == ClassQueryParams {
		return 0, 0
	}
	return param.ClockAllowanceQueryPast, param.ClockAllowanceQueryFuture
}

// CheckTimestamp validates a request timestamp against wall-clock "now"
// using class's allowance, returning a *ProtocolError carrying the server
// time on failure as required by the reply text
// "ERROR:invalid timestamp:<server_time>" (spec.md §4.D.1 step 4).
func CheckTimestamp(ts time.Time, now time.Time, class Class) error {
	past, future := clockAllowance(class)
	if past == 0 && future == 0 && class == ClassQueryParams {
		return nil
	}
	if ts.Before(now.Add(-past)) || ts.After(now.Add(future)) {
		return protoErr(ErrInvalidTimestamp, now.UTC().Format(time.RFC3339))
	}
	return nil
}
