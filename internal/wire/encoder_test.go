package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncoder_Ticket_ExactBytes(t *testing.T) {
	t.Parallel()

	msg := TicketMsg{
		Plate:      Plate("UN1X"),
		Road:       66,
		Mile1:      100,
		Timestamp1: 123456,
		Mile2:      110,
		Timestamp2: 123816,
		Speed:      10000,
	}
	want := []byte{
		0x21, 0x04, 0x55, 0x4e, 0x31, 0x58, 0x00, 0x42, 0x00, 0x64, 0x00, 0x01, 0xe2, 0x40,
		0x00, 0x6e, 0x00, 0x01, 0xe3, 0xa8, 0x27, 0x10,
	}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeTicket(msg))
	require.Equal(t, want, buf.Bytes())
}

func TestEncoder_Error_ExactBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeError("bad"))
	require.Equal(t, []byte{0x10, 0x03, 0x62, 0x61, 0x64}, buf.Bytes())
}

func TestEncoder_Heartbeat_ExactBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).EncodeHeartbeat())
	require.Equal(t, []byte{0x41}, buf.Bytes())
}

func TestEncoder_PlateTooLong(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	msg := TicketMsg{Plate: bytes.Repeat([]byte("x"), MaxPlateLen+1)}
	require.Error(t, NewEncoder(&buf).EncodeTicket(msg))
}

func TestEncoder_ErrorReasonTooLong(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.Error(t, NewEncoder(&buf).EncodeError(string(bytes.Repeat([]byte("x"), MaxErrorLen+1))))
}
