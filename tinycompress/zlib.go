// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. The output is readable by any zlib decoder while the encoder
// stays small enough for a microcontroller: no tables, no window, one buffer.
package tinycompress

import (
	"errors"
	"hash"
	"hash/adler32"
	"io"
)

// MaxBlock is the largest payload of one stored block.
const MaxBlock = 0xFFFF

var zlibHeader = [2]byte{0x78, 0x01}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("tinycompress: write after close")

// Writer is an io.WriteCloser producing a zlib stream. Input is buffered
// until a full block is available; Close flushes the final block and the
// checksum.
type Writer struct {
	out        io.Writer
	block      []byte
	adler      hash.Hash32
	headerDone bool
	closed     bool
}

// NewWriter returns a Writer that buffers up to one block.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, MaxBlock)
}

// NewWriterSize returns a Writer that emits blocks of at most size bytes.
// Smaller blocks trade a few bytes of overhead for a smaller buffer.
func NewWriterSize(w io.Writer, size int) *Writer {
	if size <= 0 || size > MaxBlock {
		size = MaxBlock
	}
	return &Writer{
		out:   w,
		block: make([]byte, 0, size),
		adler: adler32.New(),
	}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n := 0
	for len(p) > 0 {
		room := cap(w.block) - len(w.block)
		if room == 0 {
			if err := w.flush(false); err != nil {
				return n, err
			}
			continue
		}
		if room > len(p) {
			room = len(p)
		}
		w.block = append(w.block, p[:room]...)
		p = p[room:]
		n += room
	}
	return n, nil
}

// Close writes the final block and the Adler-32 trailer. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flush(true); err != nil {
		return err
	}
	sum := w.adler.Sum32()
	_, err := w.out.Write([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
	return err
}

// flush emits the buffered bytes as one stored block.
func (w *Writer) flush(final bool) error {
	if !w.headerDone {
		if _, err := w.out.Write(zlibHeader[:]); err != nil {
			return err
		}
		w.headerDone = true
	}

	n := uint16(len(w.block))
	hdr := [5]byte{0x00, byte(n), byte(n >> 8), byte(^n), byte(^n >> 8)}
	if final {
		hdr[0] = 0x01
	}
	if _, err := w.out.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.out.Write(w.block); err != nil {
		return err
	}
	w.adler.Write(w.block)
	w.block = w.block[:0]
	return nil
}
