package protocol

import (
	"bytes"
	"errors"
)

var (
	// ErrIncomplete means the parser needs more input.
	ErrIncomplete = errors.New("protocol: incomplete frame")
	// ErrCorrupt means bytes were rejected; the parser is hunting for the
	// next sync byte.
	ErrCorrupt = errors.New("protocol: corrupt frame")
)

// Frame is one validated frame. Seq is the low four bits of the sequence byte.
// An empty payload is an ACK (or NAK when Seq is not the one expected).
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether the frame carries no messages.
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// AppendFrame wraps payload in a frame and appends it to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrTooLong
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+MinFrameLen), SeqDest|seq&SeqMask)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Parser splits a byte stream into frames. After a bad length, sequence
// byte, trailer or CRC it discards input up to the next sync byte.
type Parser struct {
	buf      []byte
	hunting  bool
	rejected int
}

// Feed appends received bytes.
func (p *Parser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Buffered returns the number of bytes not yet consumed.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Rejected returns how many times the stream was found corrupt.
func (p *Parser) Rejected() int {
	return p.rejected
}

// Reset discards buffered input and leaves the parser synchronised.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.hunting = false
}

// Next returns the next frame. It returns ErrIncomplete when the buffered
// input holds no complete frame and ErrCorrupt once per rejected frame; in
// both cases calling Next again after more input is the way forward. The
// payload is a copy and stays valid after further calls.
func (p *Parser) Next() (Frame, error) {
	if p.hunting {
		i := bytes.IndexByte(p.buf, SyncByte)
		if i < 0 {
			p.buf = p.buf[:0]
			return Frame{}, ErrIncomplete
		}
		p.buf = p.buf[i+1:]
		p.hunting = false
	}

	for len(p.buf) > 0 && p.buf[0] == SyncByte {
		p.buf = p.buf[1:]
	}
	if len(p.buf) < MinFrameLen {
		return Frame{}, ErrIncomplete
	}

	n := int(p.buf[posLen])
	if n < MinFrameLen || n > MaxFrameLen || p.buf[posSeq]&^SeqMask != SeqDest {
		return p.reject()
	}
	if len(p.buf) < n {
		return Frame{}, ErrIncomplete
	}
	if p.buf[n-1] != SyncByte {
		return p.reject()
	}
	crc := uint16(p.buf[n-3])<<8 | uint16(p.buf[n-2])
	if crc != CRC16(p.buf[:n-TrailerSize]) {
		return p.reject()
	}

	f := Frame{
		Seq:     p.buf[posSeq] & SeqMask,
		Payload: append([]byte(nil), p.buf[HeaderSize:n-TrailerSize]...),
	}
	p.buf = p.buf[n:]
	return f, nil
}

func (p *Parser) reject() (Frame, error) {
	p.rejected++
	p.hunting = true
	return Frame{}, ErrCorrupt
}
