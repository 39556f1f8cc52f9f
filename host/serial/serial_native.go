//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// NativePort wraps a tarm/serial port.
type NativePort struct {
	port    io.ReadWriteCloser
	flusher interface{ Flush() error }
	cfg     Config
}

// Open opens a native serial port.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("serial: config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	glog.V(1).Infof("serial: opened %s at %d baud", cfg.Device, cfg.Baud)
	return newNativePort(port, port, *cfg), nil
}

func newNativePort(rwc io.ReadWriteCloser, flusher interface{ Flush() error }, cfg Config) *NativePort {
	return &NativePort{port: rwc, flusher: flusher, cfg: cfg}
}

// Read reads data from the serial port. tarm/serial reports an expired read
// timeout as io.EOF; that is translated to an empty read.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err == io.EOF && p.cfg.ReadTimeout > 0 {
		return n, nil
	}
	return n, err
}

// Write writes data to the serial port.
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port.
func (p *NativePort) Close() error {
	glog.V(1).Infof("serial: closing %s", p.cfg.Device)
	return p.port.Close()
}

// Flush discards pending data.
func (p *NativePort) Flush() error {
	if p.flusher == nil {
		return nil
	}
	return p.flusher.Flush()
}
