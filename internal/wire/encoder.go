package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder writes server messages to w. Encoding itself cannot fail for
// in-range inputs: apart from a length error for a plate or reason longer
// than 255 bytes, the only errors it returns are the underlying writer's
// I/O errors.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w for outbound message encoding.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// EncodeError writes an Error message. reason must fit in a u8 length
// prefix; callers truncate ahead of time if needed.
func (e *Encoder) EncodeError(reason string) error {
	if len(reason) > MaxErrorLen {
		return fmt.Errorf("wire: error reason too long: %d bytes", len(reason))
	}
	buf := make([]byte, 0, 2+len(reason))
	buf = append(buf, byte(TagError), byte(len(reason)))
	buf = append(buf, reason...)
	_, err := e.w.Write(buf)
	return err
}

// EncodeTicket writes a Ticket message.
func (e *Encoder) EncodeTicket(t TicketMsg) error {
	if len(t.Plate) > MaxPlateLen {
		return fmt.Errorf("wire: plate too long: %d bytes", len(t.Plate))
	}
	buf := make([]byte, 0, 2+len(t.Plate)+2+2+4+2+4+2)
	buf = append(buf, byte(TagTicket), byte(len(t.Plate)))
	buf = append(buf, t.Plate...)
	buf = appendU16(buf, uint16(t.Road))
	buf = appendU16(buf, uint16(t.Mile1))
	buf = appendU32(buf, uint32(t.Timestamp1))
	buf = appendU16(buf, uint16(t.Mile2))
	buf = appendU32(buf, uint32(t.Timestamp2))
	buf = appendU16(buf, uint16(t.Speed))
	_, err := e.w.Write(buf)
	return err
}

// EncodeHeartbeat writes the one-byte Heartbeat message.
func (e *Encoder) EncodeHeartbeat() error {
	_, err := e.w.Write([]byte{byte(TagHeartbeat)})
	return err
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
