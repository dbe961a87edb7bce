package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoder_IAmCamera(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want IAmCameraMsg
	}{
		{
			name: "road 66",
			data: []byte{0x80, 0x00, 0x42, 0x00, 0x64, 0x00, 0x3c},
			want: IAmCameraMsg{Road: 66, Mile: 100, Limit: 60},
		},
		{
			name: "road 368",
			data: []byte{0x80, 0x01, 0x70, 0x04, 0xd2, 0x00, 0x28},
			want: IAmCameraMsg{Road: 368, Mile: 1234, Limit: 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dec := NewDecoder(bytes.NewReader(tt.data))
			msg, err := dec.Next()
			require.NoError(t, err)
			require.Equal(t, tt.want, msg)
		})
	}
}

func TestDecoder_Plate(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(bytes.NewReader([]byte{
		0x20, 0x04, 0x55, 0x4e, 0x31, 0x58, 0x00, 0x00, 0x03, 0xe8,
	}))
	msg, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, PlateMsg{Plate: Plate("UN1X"), Timestamp: 1000}, msg)
}

func TestDecoder_WantHeartbeat(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(bytes.NewReader([]byte{0x40, 0x00, 0x00, 0x04, 0xdb}))
	msg, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, WantHeartbeatMsg{Interval: 1243}, msg)
}

func TestDecoder_IAmDispatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want IAmDispatcherMsg
	}{
		{
			name: "single road",
			data: []byte{0x81, 0x01, 0x00, 0x42},
			want: IAmDispatcherMsg{Roads: RoadList{66}},
		},
		{
			name: "three roads",
			data: []byte{0x81, 0x03, 0x00, 0x42, 0x01, 0x70, 0x13, 0x88},
			want: IAmDispatcherMsg{Roads: RoadList{66, 368, 5000}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dec := NewDecoder(bytes.NewReader(tt.data))
			msg, err := dec.Next()
			require.NoError(t, err)
			require.Equal(t, tt.want, msg)
		})
	}
}

func TestDecoder_UnknownTag(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(bytes.NewReader([]byte{0xff}))
	_, err := dec.Next()
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestDecoder_ServerOnlyTagFromClient(t *testing.T) {
	t.Parallel()

	for _, tag := range []byte{byte(TagError), byte(TagTicket), byte(TagHeartbeat)} {
		dec := NewDecoder(bytes.NewReader([]byte{tag}))
		_, err := dec.Next()
		require.Error(t, err)
		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
	}
}

func TestDecoder_EOF(t *testing.T) {
	t.Parallel()

	dec := NewDecoder(bytes.NewReader(nil))
	_, err := dec.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecoder_TruncatedMessageIsUnexpectedEOF(t *testing.T) {
	t.Parallel()

	// IAmCamera needs 6 bytes of payload; only give 3.
	dec := NewDecoder(bytes.NewReader([]byte{0x80, 0x00, 0x42, 0x00}))
	_, err := dec.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// chunkReader replays a fixed partition of a byte slice, one chunk per Read
// call, so tests can exercise arbitrary chunk boundaries without relying on
// net.Conn.
type chunkReader struct {
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

// TestDecoder_ChunkIndependence decodes the same byte stream partitioned
// four different ways and checks the message sequence is identical every
// time, per spec.md's chunk-independence property.
func TestDecoder_ChunkIndependence(t *testing.T) {
	t.Parallel()

	whole := []byte{
		0x80, 0x00, 0x42, 0x00, 0x64, 0x00, 0x3c, // IAmCamera road=66 mile=100 limit=60
		0x20, 0x04, 0x55, 0x4e, 0x31, 0x58, 0x00, 0x00, 0x03, 0xe8, // Plate UN1X ts=1000
		0x40, 0x00, 0x00, 0x04, 0xdb, // WantHeartbeat interval=1243
	}

	partitions := [][][]byte{
		{whole},
		{whole[:1], whole[1:]},
		{whole[:3], whole[3:10], whole[10:]},
		splitEvery(whole, 1),
	}

	var want []any
	{
		dec := NewDecoder(bytes.NewReader(whole))
		want = decodeAll(t, dec, 3)
	}

	for i, p := range partitions {
		got := decodeAll(t, NewDecoder(&chunkReader{chunks: p}), 3)
		require.Equalf(t, want, got, "partition %d", i)
	}
}

func splitEvery(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		k := n
		if k > len(b) {
			k = len(b)
		}
		out = append(out, b[:k])
		b = b[k:]
	}
	return out
}

func decodeAll(t *testing.T, dec *Decoder, count int) []any {
	t.Helper()
	msgs := make([]any, 0, count)
	for i := 0; i < count; i++ {
		msg, err := dec.Next()
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

// decodeOutboundTicket and decodeOutboundError parse the server-only wire
// shapes directly, for round-trip testing the Encoder against the exact
// same length-prefix logic the client-facing decoders use.

func decodeOutboundTicket(t *testing.T, data []byte) TicketMsg {
	t.Helper()
	require.Equal(t, byte(TagTicket), data[0])
	plateLen := int(data[1])
	body := data[2:]
	require.GreaterOrEqual(t, len(body), plateLen+2+2+4+2+4+2)
	plate := body[:plateLen]
	body = body[plateLen:]
	road := binary.BigEndian.Uint16(body[0:2])
	mile1 := binary.BigEndian.Uint16(body[2:4])
	ts1 := binary.BigEndian.Uint32(body[4:8])
	mile2 := binary.BigEndian.Uint16(body[8:10])
	ts2 := binary.BigEndian.Uint32(body[10:14])
	speed := binary.BigEndian.Uint16(body[14:16])
	return TicketMsg{
		Plate:      Plate(plate),
		Road:       Road(road),
		Mile1:      Mile(mile1),
		Timestamp1: Timestamp(ts1),
		Mile2:      Mile(mile2),
		Timestamp2: Timestamp(ts2),
		Speed:      Speed(speed),
	}
}

func decodeOutboundError(t *testing.T, data []byte) ErrorMsg {
	t.Helper()
	require.Equal(t, byte(TagError), data[0])
	n := int(data[1])
	require.Equal(t, n, len(data)-2)
	return ErrorMsg{Reason: string(data[2:])}
}

func TestCodecRoundTrip_Ticket(t *testing.T) {
	t.Parallel()

	want := TicketMsg{
		Plate:      Plate("UN1X"),
		Road:       66,
		Mile1:      100,
		Timestamp1: 123456,
		Mile2:      110,
		Timestamp2: 123816,
		Speed:      10000,
	}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeTicket(want))
	got := decodeOutboundTicket(t, buf.Bytes())
	require.Equal(t, want, got)
}

func TestCodecRoundTrip_Error(t *testing.T) {
	t.Parallel()

	want := ErrorMsg{Reason: "illegal msg"}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeError(want.Reason))
	got := decodeOutboundError(t, buf.Bytes())
	require.Equal(t, want, got)
}

func TestCodecRoundTrip_Heartbeat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeHeartbeat())
	require.Equal(t, []byte{byte(TagHeartbeat)}, buf.Bytes())
}
