package wire

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Decoder turns an incoming byte stream into client messages one at a
// time. It holds no state between calls to Next beyond the underlying
// bufio.Reader's internal buffer, so feeding the same bytes through any
// partitioning of reads yields the same message sequence: io.ReadFull
// already loops over partial reads, which is what makes the sub-decoders
// below chunk-independent without a hand-rolled resumable state machine.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r for incremental decoding. r is read from directly;
// callers should not read from it themselves afterward.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until one full client message has been read, the stream
// ends (io.EOF), or a transport or protocol error occurs. The returned
// value is one of PlateMsg, WantHeartbeatMsg, IAmCameraMsg,
// IAmDispatcherMsg. Protocol errors (unknown tag, server-only tag) are
// returned as *ProtocolError; anything else is a transport error.
func (d *Decoder) Next() (any, error) {
	tagByte, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch Tag(tagByte) {
	case TagPlate:
		return d.decodePlate()
	case TagWantHeartbeat:
		return d.decodeWantHeartbeat()
	case TagIAmCamera:
		return d.decodeIAmCamera()
	case TagIAmDispatcher:
		return d.decodeIAmDispatcher()
	case TagError, TagTicket, TagHeartbeat:
		return nil, protocolErrorf("server-only message type 0x%02x sent by client", tagByte)
	default:
		return nil, protocolErrorf("unknown message type 0x%02x", tagByte)
	}
}

func (d *Decoder) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Decoder) decodePlate() (any, error) {
	length, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	body, err := d.readFull(int(length) + 4)
	if err != nil {
		return nil, err
	}
	plate := append(Plate(nil), body[:length]...)
	ts := binary.BigEndian.Uint32(body[length:])
	return PlateMsg{Plate: plate, Timestamp: Timestamp(ts)}, nil
}

func (d *Decoder) decodeWantHeartbeat() (any, error) {
	body, err := d.readFull(4)
	if err != nil {
		return nil, err
	}
	return WantHeartbeatMsg{Interval: HeartbeatInterval(binary.BigEndian.Uint32(body))}, nil
}

func (d *Decoder) decodeIAmCamera() (any, error) {
	body, err := d.readFull(6)
	if err != nil {
		return nil, err
	}
	return IAmCameraMsg{
		Road:  Road(binary.BigEndian.Uint16(body[0:2])),
		Mile:  Mile(binary.BigEndian.Uint16(body[2:4])),
		Limit: Limit(binary.BigEndian.Uint16(body[4:6])),
	}, nil
}

func (d *Decoder) decodeIAmDispatcher() (any, error) {
	count, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	body, err := d.readFull(int(count) * 2)
	if err != nil {
		return nil, err
	}
	roads := make(RoadList, count)
	for i := range roads {
		roads[i] = Road(binary.BigEndian.Uint16(body[i*2 : i*2+2]))
	}
	return IAmDispatcherMsg{Roads: roads}, nil
}
