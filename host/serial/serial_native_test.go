//go:build !wasm

package serial

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// timeoutPort behaves like tarm/serial: it returns io.EOF once the buffered
// bytes are gone.
type timeoutPort struct {
	bytes.Buffer
	closed  bool
	flushes int
}

func (p *timeoutPort) Close() error { p.closed = true; return nil }
func (p *timeoutPort) Flush() error { p.flushes++; return nil }

func TestNativePortReadTimeout(t *testing.T) {
	raw := &timeoutPort{}
	raw.WriteString("ok")
	p := newNativePort(raw, raw, *DefaultConfig("/dev/null"))

	buf := make([]byte, 8)
	n, err := p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ok", string(buf[:n]))

	n, err = p.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, p.Flush())
	require.Equal(t, 1, raw.flushes)
	require.NoError(t, p.Close())
	require.True(t, raw.closed)
}

func TestNativePortBlockingEOF(t *testing.T) {
	raw := &timeoutPort{}
	p := newNativePort(raw, nil, Config{Device: "x"})

	_, err := p.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, p.Flush())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(nil)
	require.Error(t, err)

	_, err = Open(&Config{Device: "/nonexistent/tty", Baud: 9600, ReadTimeout: time.Millisecond})
	require.Error(t, err)
	require.Contains(t, err.Error(), "/nonexistent/tty")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	require.Equal(t, "/dev/ttyUSB0", cfg.Device)
	require.Equal(t, 250000, cfg.Baud)
	require.Equal(t, 100*time.Millisecond, cfg.ReadTimeout)
}
