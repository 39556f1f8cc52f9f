package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ResponseHandler observes every message the device sends.
type ResponseHandler func(cmdID uint16, args *Decoder)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("protocol: transport closed")

// Defaults for HostTransport.
const (
	DefaultAckTimeout = 500 * time.Millisecond
	DefaultRetries    = 3
)

// HostTransport is the host end of the link. Commands are sent one frame at a
// time and retransmitted until the device ACKs them; responses are queued for
// ReceiveResponse. The first ACK received fixes the sequence numbering, so a
// host can attach to a device that has been running for a while.
type HostTransport struct {
	port io.ReadWriteCloser

	// AckTimeout bounds the wait for each ACK; Retries is the number of
	// retransmissions after a NAK or a missing ACK.
	AckTimeout time.Duration
	Retries    int

	sendMu sync.Mutex
	seq    uint8
	synced bool

	parser    Parser
	acks      chan Frame
	responses chan []byte

	handlerMu sync.RWMutex
	handler   ResponseHandler

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:       port,
		AckTimeout: DefaultAckTimeout,
		Retries:    DefaultRetries,
		acks:       make(chan Frame, 4),
		responses:  make(chan []byte, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one message block and waits until the device ACKs it.
func (t *HostTransport) SendCommand(msg []byte) error {
	return t.SendCommandWithTimeout(msg, t.AckTimeout)
}

// SendCommandWithTimeout is SendCommand with an explicit ACK timeout.
func (t *HostTransport) SendCommandWithTimeout(msg []byte, timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if len(msg) > MaxPayload {
		return fmt.Errorf("%d byte message: %w", len(msg), ErrTooLong)
	}

	for attempt := 0; attempt <= t.Retries; attempt++ {
		frame, _ := AppendFrame(nil, t.seq, msg)
		if _, err := t.port.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}

		ack, ok, err := t.waitAck(timeout)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			// lost frame or lost ACK
		case ack == nextSeq(t.seq):
			t.seq = ack
			t.synced = true
			return nil
		case !t.synced:
			// first contact: continue the device's numbering
			t.seq = ack
		}
	}
	return fmt.Errorf("seq %d: no ACK after %d attempts", t.seq, t.Retries+1)
}

// waitAck returns the sequence carried by the next ACK, or ok false on
// timeout.
func (t *HostTransport) waitAck(timeout time.Duration) (seq uint8, ok bool, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-t.acks:
		return ack.Seq, true, nil
	case <-timer.C:
		return 0, false, nil
	case <-t.stop:
		return 0, false, ErrClosed
	}
}

// ReceiveResponse returns the next message block sent by the device.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-t.responses:
		return msg, nil
	case <-timer.C:
		return nil, fmt.Errorf("no response after %v", timeout)
	case <-t.stop:
		return nil, ErrClosed
	}
}

// SetResponseHandler installs a callback run on the read goroutine for every
// message, before it is queued.
func (t *HostTransport) SetResponseHandler(h ResponseHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.handler = h
}

// Sequence returns the sequence number of the next command frame.
func (t *HostTransport) Sequence() uint8 {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.seq
}

// Reset drops queued messages and forgets the sequence numbering; the next
// command adopts whatever sequence the device expects.
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	t.seq = 0
	t.synced = false
	for {
		select {
		case <-t.acks:
		case <-t.responses:
		default:
			return
		}
	}
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	err := ErrClosed
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.parser.Feed(buf[:n])
			t.drain()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// drain routes every complete frame in the parser.
func (t *HostTransport) drain() {
	for {
		f, err := t.parser.Next()
		if err == ErrIncomplete {
			return
		}
		if err != nil {
			continue
		}

		if f.IsAck() {
			select {
			case t.acks <- f:
			default:
			}
			continue
		}

		// the device sends one message per frame
		d := NewDecoder(f.Payload)
		id := d.Uint()
		if d.Err() != nil {
			continue
		}
		t.deliver(uint16(id), f.Payload)
	}
}

func (t *HostTransport) deliver(id uint16, msg []byte) {
	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h != nil {
		d := NewDecoder(msg)
		d.Uint()
		h(id, d)
	}

	select {
	case t.responses <- msg:
	default:
		// queue full: drop the oldest
		select {
		case <-t.responses:
		default:
		}
		t.responses <- msg
	}
}
