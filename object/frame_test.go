package object

import (
	"testing"
	"time"

	"privadex.dev/node/param"
)

func buildFrame(tag Tag, pow [param.TxPowSize]byte, body []byte) []byte {
	size := param.CCMsgHeaderSize + param.TxPowSize + len(body)
	out := EncodeHeader(Header{Size: uint32(size), Tag: tag})
	out = append(out, pow[:]...)
	out = append(out, body...)
	return out
}

func TestDecodeHeaderShortRead(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3})
	pe, ok := AsProtocolError(err)
	if !ok || pe.Code != ErrShortRead {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestValidateFrameSizeUnrecognizedTag(t *testing.T) {
	_, err := ValidateFrameSize(Header{Size: 100, Tag: Tag(9999)})
	pe, ok := AsProtocolError(err)
	if !ok || pe.Code != ErrUnrecognizedTag {
		t.Fatalf("expected ErrUnrecognizedTag, got %v", err)
	}
}

func TestValidateFrameSizeTooSmall(t *testing.T) {
	_, err := ValidateFrameSize(Header{Size: 4, Tag: TagQueryParams})
	pe, ok := AsProtocolError(err)
	if !ok || pe.Code != ErrSizeFieldInvalid {
		t.Fatalf("expected ErrSizeFieldInvalid, got %v", err)
	}
}

func TestParseFrameRoundTrip(t *testing.T) {
	body := make([]byte, 8+4)
	raw := buildFrame(TagQueryParams, [param.TxPowSize]byte{}, body)
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if f.Header.Tag != TagQueryParams {
		t.Fatalf("tag mismatch")
	}
	if len(f.Body) != len(body) {
		t.Fatalf("body length mismatch: got %d want %d", len(f.Body), len(body))
	}
}

func TestCheckTimestampWithinAllowance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	ts := now.Add(-10 * time.Minute)
	if err := CheckTimestamp(ts, now, ClassQuery); err != nil {
		t.Fatalf("expected timestamp within allowance to pass: %v", err)
	}
}

func TestCheckTimestampTooOld(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	ts := now.Add(-41 * time.Minute)
	err := CheckTimestamp(ts, now, ClassTx)
	pe, ok := AsProtocolError(err)
	if !ok || pe.Code != ErrInvalidTimestamp {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestCheckTimestampParamsHasNoAllowanceCheck(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	// PARAMS carries "none" for clock allowance, meaning no check is
	// performed at all, per spec.md §4.A.
	ts := now.Add(-365 * 24 * time.Hour)
	if err := CheckTimestamp(ts, now, ClassQueryParams); err != nil {
		t.Fatalf("expected PARAMS to skip the timestamp check entirely: %v", err)
	}
}
