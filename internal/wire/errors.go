package wire

import "fmt"

// ProtocolError is returned by the Decoder when the byte stream violates
// the wire format: an unknown tag or a server-only tag sent by a client.
// It is distinct from a transport error (I/O failure,
// EOF) — callers use it to decide whether to send an Error message before
// closing the connection.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
