package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	f, err := AppendFrame(nil, seq, payload)
	require.NoError(t, err)
	return f
}

func TestAppendFrameLayout(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	f := mustFrame(t, 0x03, payload)

	require.Len(t, f, len(payload)+MinFrameLen)
	require.Equal(t, byte(len(f)), f[0])
	require.Equal(t, byte(0x13), f[1])
	require.Equal(t, payload, f[2:5])
	crc := CRC16(f[:5])
	require.Equal(t, []byte{byte(crc >> 8), byte(crc), SyncByte}, f[5:])

	ack := mustFrame(t, 0x1F, nil)
	require.Equal(t, byte(MinFrameLen), ack[0])
	require.Equal(t, byte(0x1F), ack[1])
}

func TestAppendFrameTooLong(t *testing.T) {
	_, err := AppendFrame(nil, 0, make([]byte, MaxPayload))
	require.NoError(t, err)

	dst := []byte{0xAA}
	out, err := AppendFrame(dst, 0, make([]byte, MaxPayload+1))
	require.ErrorIs(t, err, ErrTooLong)
	require.Equal(t, dst, out)
}

func TestParserFrames(t *testing.T) {
	var p Parser
	stream := append(mustFrame(t, 1, []byte{0x0A}), mustFrame(t, 2, []byte{0x0B, 0x0C})...)
	p.Feed(stream)

	f, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, Frame{Seq: 1, Payload: []byte{0x0A}}, f)

	f, err = p.Next()
	require.NoError(t, err)
	require.Equal(t, Frame{Seq: 2, Payload: []byte{0x0B, 0x0C}}, f)

	_, err = p.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	require.Zero(t, p.Buffered())
}

func TestParserByteAtATime(t *testing.T) {
	var p Parser
	frame := mustFrame(t, 5, []byte{0x10, 0x20, 0x30})

	for i, b := range frame {
		p.Feed([]byte{b})
		f, err := p.Next()
		if i < len(frame)-1 {
			require.ErrorIs(t, err, ErrIncomplete)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, uint8(5), f.Seq)
		require.Equal(t, []byte{0x10, 0x20, 0x30}, f.Payload)
	}
}

func TestParserSkipsSyncBytes(t *testing.T) {
	var p Parser
	p.Feed([]byte{SyncByte, SyncByte})
	p.Feed(mustFrame(t, 0, nil))

	f, err := p.Next()
	require.NoError(t, err)
	require.True(t, f.IsAck())
}

func TestParserResync(t *testing.T) {
	testCases := []struct {
		name    string
		corrupt func(f []byte)
	}{
		{"bad crc", func(f []byte) { f[2] ^= 0xFF }},
		{"bad trailer", func(f []byte) { f[len(f)-1] = 0x00 }},
		{"bad sequence byte", func(f []byte) { f[1] = 0x21 }},
		{"bad length", func(f []byte) { f[0] = 0x02 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			bad := mustFrame(t, 3, []byte{0x01, 0x02})
			tc.corrupt(bad)
			p.Feed(bad)
			p.Feed([]byte{SyncByte})
			p.Feed(mustFrame(t, 4, []byte{0x09}))

			f, err := p.Next()
			require.ErrorIs(t, err, ErrCorrupt)
			for err == ErrCorrupt {
				f, err = p.Next()
			}
			require.NoError(t, err)
			require.GreaterOrEqual(t, p.Rejected(), 1)
			require.Equal(t, Frame{Seq: 4, Payload: []byte{0x09}}, f)
		})
	}
}

func TestParserDiscardsGarbageWhileHunting(t *testing.T) {
	var p Parser
	p.Feed([]byte{0x03, 0x00, 0x00, 0x00, 0x00})
	_, err := p.Next()
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = p.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	require.Zero(t, p.Buffered())

	p.Feed([]byte{SyncByte})
	p.Feed(mustFrame(t, 7, []byte{0x42}))
	f, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, uint8(7), f.Seq)

	p.Feed([]byte{0x01, 0x02})
	p.Reset()
	require.Zero(t, p.Buffered())
}
