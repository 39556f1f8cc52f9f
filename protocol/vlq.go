package protocol

import "errors"

var (
	ErrShortBuffer = errors.New("protocol: message truncated")
	ErrTooLong     = errors.New("protocol: message does not fit a frame")
)

// AppendVLQInt appends v in the variable-length encoding used for every
// integer argument: big-endian groups of 7 bits with a continuation bit, the
// first group carrying the sign.
func AppendVLQInt(dst []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// AppendVLQUint appends v; values above MaxInt32 travel as their two's
// complement and decode back to the same bits.
func AppendVLQUint(dst []byte, v uint32) []byte {
	return AppendVLQInt(dst, int32(v))
}

// AppendVLQBytes appends a length-prefixed byte string (%*s, %.*s).
func AppendVLQBytes(dst []byte, b []byte) []byte {
	dst = AppendVLQUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// Decoder reads the arguments of a message block in order. The first error
// sticks: later calls return zero values and Err reports it.
type Decoder struct {
	data []byte
	err  error
}

// NewDecoder returns a Decoder over data. The decoder does not copy data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Int decodes a signed integer.
func (d *Decoder) Int() int32 {
	if d.err != nil {
		return 0
	}
	if len(d.data) == 0 {
		d.err = ErrShortBuffer
		return 0
	}

	c := uint32(d.data[0])
	d.data = d.data[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(d.data) == 0 {
			d.err = ErrShortBuffer
			return 0
		}
		c = uint32(d.data[0])
		d.data = d.data[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v)
}

// Uint decodes an unsigned integer (%u).
func (d *Decoder) Uint() uint32 {
	return uint32(d.Int())
}

// Byte decodes a %c argument.
func (d *Decoder) Byte() uint8 {
	return uint8(d.Int())
}

// Bytes decodes a length-prefixed byte string. The result aliases the
// decoder's input.
func (d *Decoder) Bytes() []byte {
	n := d.Uint()
	if d.err != nil {
		return nil
	}
	if uint32(len(d.data)) < n {
		d.err = ErrShortBuffer
		return nil
	}
	b := d.data[:n:n]
	d.data = d.data[n:]
	return b
}

// String decodes a length-prefixed string.
func (d *Decoder) String() string {
	return string(d.Bytes())
}

// Len returns the number of undecoded bytes.
func (d *Decoder) Len() int {
	return len(d.data)
}

// Err returns the first decoding error.
func (d *Decoder) Err() error {
	return d.err
}
