package core

import "sync"

// SimDevice is a slave attached to a SimulatedI2C.
type SimDevice interface {
	// Start is called when the device is addressed; false NACKs the address.
	Start(read bool) bool
	// WriteByte receives a byte from the master; false NACKs it.
	WriteByte(b byte) bool
	// ReadByte supplies the next byte to the master.
	ReadByte() byte
	// Stop is called on STOP.
	Stop()
}

type simPhase uint8

const (
	simIdle simPhase = iota
	simAddress
	simWrite
	simRead
)

// SimulatedI2C is a register-level model of the I2C peripheral with devices
// attached to its bus. It honours the read side effects the engine relies on
// (SR1 then SR2 clears ADDR, DR read clears RxNE) and can delay or withhold
// flags and raise error flags to exercise the state machine without hardware.
type SimulatedI2C struct {
	mu sync.Mutex

	regs    [i2cRegCount]uint32
	reads   [i2cRegCount]int
	devices map[uint8]SimDevice

	clockEnabled bool
	resets       int

	phase   simPhase
	dev     SimDevice
	sr1Read bool

	// Latency is the number of status reads before a newly raised flag
	// becomes visible.
	Latency   int
	pending1  uint32
	pending2  uint32
	countdown int

	stalled1 uint32
	stalled2 bool

	log []string
}

// NewSimulatedI2C returns an empty bus.
func NewSimulatedI2C() *SimulatedI2C {
	return &SimulatedI2C{devices: make(map[uint8]SimDevice)}
}

// Attach connects dev at the 7-bit address addr.
func (s *SimulatedI2C) Attach(addr uint8, dev SimDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[addr&0x7F] = dev
}

// Stall withholds the given SR1 flags forever.
func (s *SimulatedI2C) Stall(sr1 uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled1 |= sr1
}

// StallMastership keeps SR2.MSL and SR2.BUSY clear after START.
func (s *SimulatedI2C) StallMastership() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled2 = true
}

// RaiseError sets SR1 error flags, as the hardware does on a fault.
func (s *SimulatedI2C) RaiseError(sr1 uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[I2CRegSR1] |= sr1 & I2C_SR1_ERR_Msk
}

// Log returns the bus activity seen so far: START, RESTART, ADDR, TX, RX,
// NACK and STOP records.
func (s *SimulatedI2C) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// ClearLog empties the activity log and the read counters.
func (s *SimulatedI2C) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	s.reads = [i2cRegCount]int{}
}

// Reads returns how many times reg was read.
func (s *SimulatedI2C) Reads(reg I2CReg) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[reg]
}

// Register returns the raw value of reg without side effects.
func (s *SimulatedI2C) Register(reg I2CReg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// ClockEnabled reports whether the RCC gate was opened.
func (s *SimulatedI2C) ClockEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockEnabled
}

// Resets returns the number of RCC reset pulses.
func (s *SimulatedI2C) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// EnableClock implements I2CPeripheral.
func (s *SimulatedI2C) EnableClock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockEnabled = true
}

// Reset implements I2CPeripheral.
func (s *SimulatedI2C) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.regs = [i2cRegCount]uint32{}
	s.phase, s.dev = simIdle, nil
	s.pending1, s.pending2, s.countdown = 0, 0, 0
}

// Get implements I2CPeripheral.
func (s *SimulatedI2C) Get(reg I2CReg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[reg]++

	switch reg {
	case I2CRegSR1:
		s.tick()
		s.sr1Read = true
		return s.regs[I2CRegSR1]

	case I2CRegSR2:
		s.tick()
		v := s.regs[I2CRegSR2]
		if s.sr1Read && s.regs[I2CRegSR1]&I2C_SR1_ADDR != 0 {
			s.regs[I2CRegSR1] &^= I2C_SR1_ADDR
			switch s.phase {
			case simWrite:
				s.raise(I2C_SR1_TXE, 0)
			case simRead:
				s.load()
			}
		}
		s.sr1Read = false
		return v

	case I2CRegDR:
		v := s.regs[I2CRegDR]
		if s.phase == simRead && s.regs[I2CRegSR1]&I2C_SR1_RXNE != 0 {
			s.regs[I2CRegSR1] &^= I2C_SR1_RXNE | I2C_SR1_BTF
			if s.regs[I2CRegCR1]&I2C_CR1_ACK != 0 {
				s.record("RX " + hex8(uint8(v)) + " ACK")
				s.load()
			} else {
				s.record("RX " + hex8(uint8(v)) + " NACK")
			}
		}
		return v
	}
	return s.regs[reg]
}

// Set implements I2CPeripheral.
func (s *SimulatedI2C) Set(reg I2CReg, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch reg {
	case I2CRegCR1:
		if v&I2C_CR1_START != 0 {
			s.generateStart()
		}
		if v&I2C_CR1_STOP != 0 {
			s.generateStop()
		}
		// START and STOP are cleared by hardware once generated
		s.regs[I2CRegCR1] = v &^ (I2C_CR1_START | I2C_CR1_STOP)

	case I2CRegSR1:
		// error flags are rc_w0
		s.regs[I2CRegSR1] &= v | ^uint32(I2C_SR1_ERR_Msk)

	case I2CRegSR2:
		// read only

	case I2CRegDR:
		s.regs[I2CRegDR] = v & 0xFF
		s.writeData(uint8(v))

	default:
		s.regs[reg] = v
	}
}

func (s *SimulatedI2C) generateStart() {
	if s.phase == simIdle {
		s.record("START")
	} else {
		s.record("RESTART")
	}
	s.phase = simAddress
	s.regs[I2CRegSR1] &^= I2C_SR1_TXE | I2C_SR1_BTF | I2C_SR1_RXNE
	var sr2 uint32
	if !s.stalled2 {
		sr2 = I2C_SR2_MSL | I2C_SR2_BUSY
	}
	s.raise(I2C_SR1_SB, sr2)
}

func (s *SimulatedI2C) generateStop() {
	s.record("STOP")
	if s.dev != nil {
		s.dev.Stop()
	}
	s.phase, s.dev = simIdle, nil
	s.regs[I2CRegSR1] &^= I2C_SR1_SB | I2C_SR1_ADDR | I2C_SR1_TXE | I2C_SR1_BTF | I2C_SR1_RXNE
	s.regs[I2CRegSR2] = 0
	s.pending1, s.pending2, s.countdown = 0, 0, 0
}

func (s *SimulatedI2C) writeData(b uint8) {
	switch s.phase {
	case simAddress:
		s.regs[I2CRegSR1] &^= I2C_SR1_SB
		addr, read := b>>1, b&1 == 1
		dir := "W"
		if read {
			dir = "R"
		}
		s.record("ADDR " + hex8(addr) + " " + dir)

		dev, ok := s.devices[addr]
		if !ok || !dev.Start(read) {
			s.record("NACK")
			s.regs[I2CRegSR1] |= I2C_SR1_AF
			s.phase = simIdle
			return
		}
		s.dev = dev
		if read {
			s.phase = simRead
			s.regs[I2CRegSR2] &^= I2C_SR2_TRA
		} else {
			s.phase = simWrite
			s.regs[I2CRegSR2] |= I2C_SR2_TRA
		}
		s.raise(I2C_SR1_ADDR, 0)

	case simWrite:
		s.regs[I2CRegSR1] &^= I2C_SR1_TXE | I2C_SR1_BTF
		s.record("TX " + hex8(b))
		if !s.dev.WriteByte(b) {
			s.record("NACK")
			s.regs[I2CRegSR1] |= I2C_SR1_AF
			return
		}
		s.raise(I2C_SR1_TXE|I2C_SR1_BTF, 0)
	}
}

// load clocks the next byte in from the addressed device.
func (s *SimulatedI2C) load() {
	s.regs[I2CRegDR] = uint32(s.dev.ReadByte())
	s.raise(I2C_SR1_RXNE, 0)
}

// raise makes flags visible after Latency status reads.
func (s *SimulatedI2C) raise(sr1, sr2 uint32) {
	sr1 &^= s.stalled1
	if s.Latency <= 0 {
		s.regs[I2CRegSR1] |= sr1
		s.regs[I2CRegSR2] |= sr2
		return
	}
	s.pending1 |= sr1
	s.pending2 |= sr2
	s.countdown = s.Latency
}

func (s *SimulatedI2C) tick() {
	if s.countdown == 0 {
		return
	}
	s.countdown--
	if s.countdown == 0 {
		s.regs[I2CRegSR1] |= s.pending1
		s.regs[I2CRegSR2] |= s.pending2
		s.pending1, s.pending2 = 0, 0
	}
}

func (s *SimulatedI2C) record(entry string) {
	s.log = append(s.log, entry)
}

// SimPins is an I2CPins that records its mode changes.
type SimPins struct {
	Active     bool
	Configured int
	Restored   int
}

// ConfigureForBus implements I2CPins.
func (p *SimPins) ConfigureForBus() {
	p.Active = true
	p.Configured++
}

// RestoreDefault implements I2CPins.
func (p *SimPins) RestoreDefault() {
	p.Active = false
	p.Restored++
}

// SimRegisterDevice is a register-pointer device, the layout of most sensors
// and small EEPROMs: the first byte of a write sets the pointer, further bytes
// are stored from it, and reads stream from it. The pointer wraps.
type SimRegisterDevice struct {
	Mem []byte

	// NACKAfter makes the device refuse data bytes once that many have been
	// written in one transfer; negative disables it.
	NACKAfter int

	// Absent makes the device ignore its address.
	Absent bool

	ptr      int
	written  int
	pointing bool
}

// NewSimRegisterDevice returns a device with size bytes of register space,
// at least one.
func NewSimRegisterDevice(size int) *SimRegisterDevice {
	if size < 1 {
		size = 1
	}
	return &SimRegisterDevice{Mem: make([]byte, size), NACKAfter: -1}
}

// Start implements SimDevice.
func (d *SimRegisterDevice) Start(read bool) bool {
	if d.Absent {
		return false
	}
	d.written = 0
	d.pointing = !read
	return true
}

// WriteByte implements SimDevice.
func (d *SimRegisterDevice) WriteByte(b byte) bool {
	if d.NACKAfter >= 0 && d.written >= d.NACKAfter {
		return false
	}
	d.written++
	if d.pointing {
		d.ptr = int(b) % len(d.Mem)
		d.pointing = false
		return true
	}
	d.Mem[d.ptr] = b
	d.ptr = (d.ptr + 1) % len(d.Mem)
	return true
}

// ReadByte implements SimDevice.
func (d *SimRegisterDevice) ReadByte() byte {
	b := d.Mem[d.ptr]
	d.ptr = (d.ptr + 1) % len(d.Mem)
	return b
}

// Stop implements SimDevice.
func (d *SimRegisterDevice) Stop() {}
