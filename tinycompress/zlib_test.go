package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func inflate(t *testing.T, stream []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(stream))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return out
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"small", 37},
		{"one full block", MaxBlock},
		{"split", MaxBlock + 4465},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := pattern(tc.size)
			require.Equal(t, data, inflate(t, compress(t, data)))
		})
	}
}

func TestWriterChunked(t *testing.T) {
	data := pattern(MaxBlock + 100)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	// uneven chunks
	for rest := data; len(rest) > 0; {
		n := 1000
		if n > len(rest) {
			n = len(rest)
		}
		written, err := w.Write(rest[:n])
		require.NoError(t, err)
		require.Equal(t, n, written)
		rest = rest[n:]
	}
	require.NoError(t, w.Close())

	require.Equal(t, compress(t, data), buf.Bytes())
	require.Equal(t, data, inflate(t, buf.Bytes()))
}

func TestWriterSmallBlocks(t *testing.T) {
	data := []byte(`{"version":"test","commands":{}}`)

	var buf bytes.Buffer
	w := NewWriterSize(&buf, 8)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// header, four full blocks, checksum
	require.Len(t, data, 32)
	require.Equal(t, 2+4*(5+8)+4, buf.Len())
	require.Equal(t, data, inflate(t, buf.Bytes()))
}

func TestWriterClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	// header, one empty final block, adler32 of nothing
	require.Equal(t, []byte{0x78, 0x01, 0x01, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x01}, buf.Bytes())

	_, err := w.Write([]byte{1})
	require.ErrorIs(t, err, ErrClosed)
}
