package core

// DefaultI2CTimeout is the default number of status reads a blocking wait may
// spend on one flag.
const DefaultI2CTimeout = 1000000

// I2CConfig configures a bus controller.
type I2CConfig struct {
	Frequency Hertz     // Bus speed, 100 kHz when zero
	DutyCycle DutyCycle // Fast mode duty cycle, ignored at or below 100 kHz
	Timeout   int       // Spin budget per flag wait, DefaultI2CTimeout when zero
}

func (cfg *I2CConfig) applyDefaults() {
	if cfg.Frequency == 0 {
		cfg.Frequency = 100 * KHz
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultI2CTimeout
	}
}

// I2C is a bus-master controller for one I2C peripheral.
//
// It can be driven two ways. Write, Read and WriteRead run a transaction to
// completion, spinning on each status flag. StartTransaction followed by
// CheckEvent calls (from an interrupt handler or a main loop) advance it one
// step at a time. Only one call site may drive a given transaction.
type I2C struct {
	bus    I2CPeripheral
	pins   I2CPins
	clocks ClockSource
	config I2CConfig
	timing I2CTiming

	// Timeout is the number of status reads a blocking wait may spend on one
	// flag before giving up with ErrTimeout. It is an iteration count, not a
	// duration.
	Timeout int

	eventDriven bool
	state       State
	txn         *Transaction
	released    bool
	trace       traceRing
}

// OpenI2C takes ownership of the peripheral and pins and configures the bus
// for speed with default settings.
func OpenI2C(bus I2CPeripheral, pins I2CPins, speed Hertz, clocks ClockSource) (*I2C, error) {
	return OpenI2CConfig(bus, pins, I2CConfig{Frequency: speed}, clocks)
}

// OpenI2CConfig takes ownership of the peripheral and pins and configures the
// bus. The timing is validated before any register or pin is touched.
func OpenI2CConfig(bus I2CPeripheral, pins I2CPins, cfg I2CConfig, clocks ClockSource) (*I2C, error) {
	cfg.applyDefaults()

	timing, err := CalculateI2CTiming(clocks.APB1(), cfg.Frequency, cfg.DutyCycle)
	if err != nil {
		DebugPrintln("[I2C] open: " + err.Error())
		return nil, err
	}

	c := &I2C{
		bus:     bus,
		pins:    pins,
		clocks:  clocks,
		config:  cfg,
		timing:  timing,
		Timeout: cfg.Timeout,
	}
	c.configure()

	DebugPrintln("[I2C] open: " + utoa(uint32(cfg.Frequency)) + " Hz, " + timing.Mode.String() +
		", ccr=" + utoa(uint32(timing.Divisor)) + " trise=" + utoa(uint32(timing.Rise)))
	return c, nil
}

func (c *I2C) configure() {
	c.pins.ConfigureForBus()

	c.bus.EnableClock()
	c.bus.Reset()

	// PE must be clear while CCR and TRISE are written
	modify(c.bus, I2CRegCR1, 0, I2C_CR1_PE)

	modify(c.bus, I2CRegCR2, uint32(c.timing.Freq), I2C_CR2_FREQ_Msk)
	c.bus.Set(I2CRegTRISE, uint32(c.timing.Rise)&I2C_TRISE_TRISE_Msk)
	c.bus.Set(I2CRegCCR, c.timing.CCR())

	modify(c.bus, I2CRegCR1, I2C_CR1_PE, 0)
}

// Config returns the configuration the controller was opened with.
func (c *I2C) Config() I2CConfig {
	return c.config
}

// Timing returns the programmed timing registers.
func (c *I2C) Timing() I2CTiming {
	return c.timing
}

// State returns the protocol state.
func (c *I2C) State() State {
	return c.state
}

// Release restores the pins and hands back the peripheral and pins. The
// controller must not be used afterwards; every operation reports ErrReleased.
func (c *I2C) Release() (I2CPeripheral, I2CPins) {
	bus, pins := c.bus, c.pins
	if !c.released {
		pins.RestoreDefault()
	}
	c.released = true
	c.bus, c.pins = nil, nil
	c.txn = nil
	c.state = StateIdle
	return bus, pins
}

// Reinit releases the controller and opens a fresh one on the same hardware
// with the same configuration. It is the recovery path after a bus error,
// arbitration loss or timeout.
func (c *I2C) Reinit() (*I2C, error) {
	if c.released {
		return nil, ErrReleased
	}
	cfg, clocks := c.config, c.clocks
	bus, pins := c.Release()
	return OpenI2CConfig(bus, pins, cfg, clocks)
}

// EnableIRQs enables the event, buffer and error interrupts.
func (c *I2C) EnableIRQs() {
	if c.released {
		return
	}
	modify(c.bus, I2CRegCR2, I2C_CR2_IRQ_Msk, 0)
}

// DisableIRQs disables the event, buffer and error interrupts.
func (c *I2C) DisableIRQs() {
	if c.released {
		return
	}
	modify(c.bus, I2CRegCR2, 0, I2C_CR2_IRQ_Msk)
}

// Write sends w to addr and blocks until STOP.
func (c *I2C) Write(addr uint8, w []byte) error {
	return c.run(WriteTransaction(addr, w))
}

// Read fills r from addr and blocks until STOP.
func (c *I2C) Read(addr uint8, r []byte) error {
	return c.run(ReadTransaction(addr, r))
}

// WriteRead sends w, then fills r after a repeated start, and blocks until STOP.
func (c *I2C) WriteRead(addr uint8, w, r []byte) error {
	return c.run(WriteReadTransaction(addr, w, r))
}

// Tx performs a write, read or write-then-read depending on which buffers are
// non-empty. It makes the controller usable as a tinygo.org/x/drivers bus.
//
// 10-bit addresses are not supported.
func (c *I2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0xFF {
		// would otherwise truncate into a valid 7-bit address
		return ErrInvalidAddress
	}
	switch {
	case len(w) > 0 && len(r) > 0:
		return c.WriteRead(uint8(addr), w, r)
	case len(w) > 0:
		return c.Write(uint8(addr), w)
	case len(r) > 0:
		return c.Read(uint8(addr), r)
	}
	return ErrEmptyTransaction
}

// ReadRegister reads len(buf) bytes starting at register r.
func (c *I2C) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return c.WriteRead(addr, []byte{r}, buf)
}

// WriteRegister writes buf starting at register r.
func (c *I2C) WriteRegister(addr uint8, r uint8, buf []byte) error {
	w := make([]byte, 0, len(buf)+1)
	w = append(w, r)
	w = append(w, buf...)
	return c.Write(addr, w)
}

// Trace returns the most recent handled events, oldest first. Interrupts are
// masked while the ring is copied.
func (c *I2C) Trace() []TraceEntry {
	s := disableInterrupts()
	defer restoreInterrupts(s)
	return c.trace.snapshot()
}

// ClearTrace empties the event trace.
func (c *I2C) ClearTrace() {
	s := disableInterrupts()
	defer restoreInterrupts(s)
	c.trace.clear()
}

// DumpTrace writes the event trace to the debug writer.
func (c *I2C) DumpTrace() {
	dumpTrace("bus", c.Trace())
}

// run drives txn through the state table, spinning on every flag.
func (c *I2C) run(txn *Transaction) error {
	if err := c.begin(txn, false); err != nil {
		return err
	}
	for {
		evt, ok := c.state.Awaiting()
		if !ok {
			return ErrInvalidState
		}
		if err := c.wait(evt); err != nil {
			return err
		}
		done, err := c.HandleEvent(evt)
		if err != nil {
			return err
		}
		if done {
			c.txn = nil
			return nil
		}
	}
}

// wait spins until evt is signalled, a bus error is flagged or the budget is
// spent.
func (c *I2C) wait(evt Event) error {
	for n := 0; ; {
		ready, err := c.ready(evt)
		if err != nil {
			return c.abort(err)
		}
		if ready {
			return nil
		}
		n++
		if n >= c.Timeout {
			return c.abort(ErrTimeout)
		}
	}
}
