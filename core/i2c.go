package core

import "l1hal/protocol"

// MaxI2CRead is the largest read the host may request in one command.
const MaxI2CRead = 48

// traceChunk is the number of trace entries that fit one i2c_trace_response.
const traceChunk = 24

// ErrReadLength is returned for an i2c_read outside 1..MaxI2CRead bytes.
var ErrReadLength = &configError{"read length outside 1..48"}

func (s *Server) registerI2CCommands() {
	s.registry.RegisterResponse("i2c_status", "bus=%c status=%c")
	s.registry.RegisterResponse("i2c_read_response", "bus=%c status=%c data=%*s")
	s.registry.RegisterResponse("i2c_trace_response", "bus=%c events=%*s")

	s.registry.Register("i2c_write", "bus=%c addr=%c data=%*s", s.handleI2CWrite)
	s.registry.Register("i2c_read", "bus=%c addr=%c reg=%*s read_len=%c", s.handleI2CRead)
	s.registry.Register("i2c_reset", "bus=%c", s.handleI2CReset)
	s.registry.Register("i2c_trace", "bus=%c", s.handleI2CTrace)
}

// SetI2CBus makes a controller reachable from the host as bus id. A nil
// controller frees the slot.
func (s *Server) SetI2CBus(id uint8, c *I2C) error {
	if int(id) >= MaxI2CBuses {
		return ErrUnknownBus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buses[id] = c
	return nil
}

// I2CBus returns the controller registered as bus id.
func (s *Server) I2CBus(id uint8) (*I2C, error) {
	if int(id) >= MaxI2CBuses {
		return nil, ErrUnknownBus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buses[id] == nil {
		return nil, ErrUnknownBus
	}
	return s.buses[id], nil
}

func (s *Server) sendStatus(bus uint8, err error) error {
	return s.respond("i2c_status", func(msg []byte) []byte {
		msg = protocol.AppendVLQUint(msg, uint32(bus))
		return protocol.AppendVLQUint(msg, uint32(ErrorCode(err)))
	})
}

func logBusError(op string, bus uint8, err error) {
	if err != nil {
		DebugPrintln("[I2C] bus " + itoa(int(bus)) + " " + op + ": " + err.Error())
	}
}

// i2c_write bus=%c addr=%c data=%*s
func (s *Server) handleI2CWrite(args *protocol.Decoder) error {
	bus := args.Byte()
	addr := args.Byte()
	data := args.Bytes()
	if err := args.Err(); err != nil {
		return err
	}

	c, err := s.I2CBus(bus)
	if err == nil {
		err = c.Write(addr, data)
	}
	logBusError("write", bus, err)
	return s.sendStatus(bus, err)
}

// i2c_read bus=%c addr=%c reg=%*s read_len=%c
func (s *Server) handleI2CRead(args *protocol.Decoder) error {
	bus := args.Byte()
	addr := args.Byte()
	reg := args.Bytes()
	n := args.Byte()
	if err := args.Err(); err != nil {
		return err
	}

	var data []byte
	c, err := s.I2CBus(bus)
	if err == nil && (n == 0 || n > MaxI2CRead) {
		err = ErrReadLength
	}
	if err == nil {
		data = make([]byte, n)
		if len(reg) == 0 {
			err = c.Read(addr, data)
		} else {
			err = c.WriteRead(addr, reg, data)
		}
	}
	logBusError("read", bus, err)
	if err != nil {
		data = nil
	}

	return s.respond("i2c_read_response", func(msg []byte) []byte {
		msg = protocol.AppendVLQUint(msg, uint32(bus))
		msg = protocol.AppendVLQUint(msg, uint32(ErrorCode(err)))
		return protocol.AppendVLQBytes(msg, data)
	})
}

// i2c_reset bus=%c
func (s *Server) handleI2CReset(args *protocol.Decoder) error {
	bus := args.Byte()
	if err := args.Err(); err != nil {
		return err
	}

	c, err := s.I2CBus(bus)
	if err == nil {
		c, err = c.Reinit()
		// a failed reinit leaves the hardware released
		_ = s.SetI2CBus(bus, c)
	}
	logBusError("reset", bus, err)
	return s.sendStatus(bus, err)
}

// i2c_trace bus=%c
//
// Each event is sent as two bytes, the event then the address, oldest first.
func (s *Server) handleI2CTrace(args *protocol.Decoder) error {
	bus := args.Byte()
	if err := args.Err(); err != nil {
		return err
	}

	var events []byte
	if c, err := s.I2CBus(bus); err == nil {
		trace := c.Trace()
		if len(trace) > traceChunk {
			trace = trace[len(trace)-traceChunk:]
		}
		events = make([]byte, 0, 2*len(trace))
		for _, e := range trace {
			events = append(events, byte(e.Event), e.Addr)
		}
	}

	return s.respond("i2c_trace_response", func(msg []byte) []byte {
		msg = protocol.AppendVLQUint(msg, uint32(bus))
		return protocol.AppendVLQBytes(msg, events)
	})
}
