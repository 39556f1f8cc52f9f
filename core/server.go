package core

import (
	"errors"
	"io"
	"runtime"
	"sync"

	"l1hal/protocol"
)

// MaxI2CBuses is the number of bus slots a Server exposes to the host.
const MaxI2CBuses = 4

// maxIdentifyChunk keeps an identify_response within one frame.
const maxIdentifyChunk = 40

// Server is the firmware end of the host bridge. It owns the message
// registry and dictionary, decodes host frames through a protocol.Transport
// and runs the bus commands against the registered controllers.
type Server struct {
	registry  *CommandRegistry
	dict      *Dictionary
	transport *protocol.Transport

	mu    sync.Mutex
	buses [MaxI2CBuses]*I2C
}

// NewServer returns a server writing its frames to out, with the identify
// and bus commands registered.
func NewServer(out io.Writer) *Server {
	s := &Server{registry: NewCommandRegistry()}
	s.dict = NewDictionary(s.registry)
	s.transport = protocol.NewTransport(out, func(id uint16, args *protocol.Decoder) error {
		return s.registry.Dispatch(id, args)
	})

	// the host relies on these two ids before it has the dictionary
	s.registry.RegisterResponse("identify_response", "offset=%u data=%*s")
	s.registry.Register("identify", "offset=%u count=%c", s.handleIdentify)

	s.registerI2CCommands()
	s.dict.AddConstant("MCU", "stm32l1")
	s.dict.AddConstant("I2C_BUSES", MaxI2CBuses)
	s.dict.AddConstant("I2C_MAX_READ", MaxI2CRead)
	return s
}

// Registry returns the message registry.
func (s *Server) Registry() *CommandRegistry { return s.registry }

// Dictionary returns the data dictionary.
func (s *Server) Dictionary() *Dictionary { return s.dict }

// Transport returns the link state.
func (s *Server) Transport() *protocol.Transport { return s.transport }

// Receive consumes bytes read from the host.
func (s *Server) Receive(data []byte) error {
	return s.transport.Receive(data)
}

// Serve reads from r until it fails. Command errors are logged and do not
// stop the loop. io.EOF ends it cleanly.
func (s *Server) Serve(r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if rerr := s.Receive(buf[:n]); rerr != nil {
				DebugPrintln("[SERVER] " + rerr.Error())
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			// non-blocking UARTs return nothing while idle
			runtime.Gosched()
		}
	}
}

// respond sends the response name with the arguments appended by args.
func (s *Server) respond(name string, args func(msg []byte) []byte) error {
	msg, err := s.registry.Message(name)
	if err != nil {
		return errors.New(name + ": " + err.Error())
	}
	return s.transport.Send(args(msg))
}

func (s *Server) handleIdentify(args *protocol.Decoder) error {
	offset := args.Uint()
	count := args.Byte()
	if err := args.Err(); err != nil {
		return err
	}
	if count > maxIdentifyChunk {
		count = maxIdentifyChunk
	}

	chunk := s.dict.GetChunk(offset, count)
	return s.respond("identify_response", func(msg []byte) []byte {
		msg = protocol.AppendVLQUint(msg, offset)
		return protocol.AppendVLQBytes(msg, chunk)
	})
}
