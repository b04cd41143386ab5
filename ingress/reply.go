package ingress

import (
	"encoding/json"
	"net"

	"privadex.dev/node/object"
)

// writeReply sends body as a single NUL-terminated write and closes the
// connection, per spec.md §4.D.4: "All successful replies are UTF-8 JSON,
// NUL-terminated, sent as a single write ... the server always closes
// after reply completes." Text replies (OK:/INVALID:/ERROR:/UNKNOWN:) are
// ASCII, a subset of UTF-8, so the same framing applies to both.
func writeReply(nc net.Conn, body string) {
	defer nc.Close()
	buf := make([]byte, len(body)+1)
	copy(buf, body)
	_, _ = nc.Write(buf)
}

// writeJSONReply marshals v and writes it the same way writeReply does. A
// marshal failure degrades to a plain ERROR reply rather than panicking.
func writeJSONReply(nc net.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeReply(nc, "ERROR:server error")
		return
	}
	defer nc.Close()
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	_, _ = nc.Write(buf)
}

// textError is a pre-formatted reply string (already carrying its
// OK:/INVALID:/ERROR:/UNKNOWN: prefix) wrapped as an error, so the read
// pipeline's error-handling branches can all funnel through one
// "return err, reply err.Error()" shape.
type textError string

func (e textError) Error() string { return string(e) }

func errInvalid(msg string) error { return textError("INVALID:" + msg) }
func errServer(msg string) error  { return textError("ERROR:" + msg) }

// protocolErrorReply maps an *object.ProtocolError to the exact reply text
// named in spec.md §4.D.1/§7.
func protocolErrorReply(err error) string {
	pe, ok := object.AsProtocolError(err)
	if !ok {
		return "ERROR:server error"
	}
	switch pe.Code {
	case object.ErrShortRead, object.ErrSizeFieldInvalid:
		// §9 Open Question: both paths are treated as interchangeable framing
		// failures for the purpose of closing the connection; the wire text
		// still distinguishes them since spec.md §4.D.1 names both strings.
		if pe.Code == object.ErrShortRead {
			return "ERROR:unexpected short read"
		}
		return "ERROR:message size field invalid"
	case object.ErrUnrecognizedTag:
		return "ERROR:unrecognized message type"
	case object.ErrInvalidTimestamp:
		return "ERROR:invalid timestamp:" + pe.Msg
	case object.ErrPowFailed:
		return "ERROR:proof of work failed:" + pe.Msg
	case object.ErrTooManyObjects:
		return "ERROR:too many query objects"
	case object.ErrStructuralInvalid:
		return "INVALID:structurally invalid object"
	default:
		return "ERROR:server error"
	}
}
