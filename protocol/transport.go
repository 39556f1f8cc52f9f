package protocol

import (
	"errors"
	"io"
	"sync"
)

// CommandHandler runs one command. It decodes its own arguments from args and
// must consume exactly the arguments the command declares.
type CommandHandler func(cmdID uint16, args *Decoder) error

// Transport is the device end of the link. It validates incoming frames,
// enforces the host's sequence numbers, ACKs every frame and hands the
// messages of in-sequence frames to the handler.
type Transport struct {
	mu sync.Mutex

	parser  Parser
	expect  uint8 // next sequence expected from the host
	out     io.Writer
	handler CommandHandler
	onReset func()
	scratch []byte
}

// NewTransport returns a transport that writes frames to out.
func NewTransport(out io.Writer, handler CommandHandler) *Transport {
	return &Transport{
		out:     out,
		handler: handler,
		scratch: make([]byte, 0, MaxFrameLen),
	}
}

// SetResetCallback sets a function called by Reset.
func (t *Transport) SetResetCallback(fn func()) {
	t.onReset = fn
}

// Receive consumes bytes read from the link. Every complete frame is ACKed
// with the next expected sequence; only the frame carrying the expected
// sequence is dispatched, so retransmissions run once. Partial frames wait
// for the next call. Handler errors do not stop processing and are returned
// joined.
func (t *Transport) Receive(data []byte) error {
	t.parser.Feed(data)

	var errs []error
	for {
		f, err := t.parser.Next()
		if err == ErrIncomplete {
			break
		}
		if err == ErrCorrupt {
			// NAK: repeat the sequence we still expect
			if err := t.ack(); err != nil {
				return err
			}
			continue
		}

		inSeq := f.Seq == t.expect
		if inSeq {
			t.expect = nextSeq(t.expect)
		}
		if err := t.ack(); err != nil {
			return err
		}
		if inSeq {
			if err := t.dispatch(f.Payload); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// dispatch runs every message in a frame payload.
func (t *Transport) dispatch(payload []byte) error {
	d := NewDecoder(payload)
	for d.Len() > 0 {
		id := d.Uint()
		if err := d.Err(); err != nil {
			return err
		}
		if t.handler == nil {
			return nil
		}
		if err := t.handler(uint16(id), d); err != nil {
			// the remaining arguments cannot be located
			return err
		}
		if err := d.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Send writes one message block (command id and arguments) as a frame.
func (t *Transport) Send(msg []byte) error {
	return t.write(msg)
}

// ack writes an empty frame carrying the next expected sequence.
func (t *Transport) ack() error {
	return t.write(nil)
}

func (t *Transport) write(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame, err := AppendFrame(t.scratch[:0], t.expect, payload)
	if err != nil {
		return err
	}
	t.scratch = frame[:0]
	_, err = t.out.Write(frame)
	return err
}

// Expected returns the sequence number expected next from the host.
func (t *Transport) Expected() uint8 {
	return t.expect
}

// Reset forgets buffered input and the sequence state.
func (t *Transport) Reset() {
	t.parser.Reset()
	t.expect = 0
	if t.onReset != nil {
		t.onReset()
	}
}
