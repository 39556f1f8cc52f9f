package core

// StartTransaction stores txn and issues its START condition, then returns.
// The transaction is advanced by CheckEvent and handed back by
// FinishTransaction.
func (c *I2C) StartTransaction(txn *Transaction) error {
	return c.begin(txn, true)
}

// IsTransaction reports whether a transaction is stored, finished or not.
func (c *I2C) IsTransaction() bool {
	s := disableInterrupts()
	defer restoreInterrupts(s)
	return c.txn != nil
}

// FinishTransaction removes the stored transaction and returns it, giving the
// caller its buffers back. Taking a transaction that is still in flight
// abandons it; the bus is left mid-sequence and should be reinitialised.
func (c *I2C) FinishTransaction() (*Transaction, error) {
	s := disableInterrupts()
	defer restoreInterrupts(s)

	if c.released {
		return nil, ErrReleased
	}
	if c.txn == nil {
		return nil, ErrNoTransaction
	}
	txn := c.txn
	c.txn = nil
	if c.state != StateIdle {
		DebugPrintln("[I2C] abandoned addr=" + hex8(txn.Addr) + " " + c.state.String())
		c.state = StateIdle
	}
	c.eventDriven = false
	return txn, nil
}

// CheckEvent reads the status registers once. If the awaited flag is not set
// it returns ErrWouldBlock and changes nothing; otherwise it performs exactly
// one transition and reports whether the transaction is finished.
func (c *I2C) CheckEvent() (bool, error) {
	if c.released {
		return false, ErrReleased
	}
	if c.txn == nil {
		return false, ErrNoTransaction
	}
	evt, ok := c.state.Awaiting()
	if !ok {
		if c.txn.IsFinished() {
			return true, nil
		}
		// aborted by an earlier error
		return false, ErrInvalidState
	}

	ready, err := c.ready(evt)
	if err != nil {
		return false, c.abort(err)
	}
	if !ready {
		return false, ErrWouldBlock
	}
	return c.HandleEvent(evt)
}

// CheckEvents calls CheckEvent until the transaction finishes or fails. A run
// of Timeout consecutive ErrWouldBlock results ends in ErrTimeout.
func (c *I2C) CheckEvents() (bool, error) {
	idle := 0
	for {
		done, err := c.CheckEvent()
		switch {
		case err == ErrWouldBlock:
			idle++
			if idle >= c.Timeout {
				return false, c.abort(ErrTimeout)
			}
		case err != nil:
			return false, err
		case done:
			return true, nil
		default:
			idle = 0
		}
	}
}

// HandleEvent performs the transition for evt. evt must be the event the
// controller is waiting for; anything else is rejected with
// ErrUnexpectedEvent and leaves the state untouched. Interrupt handlers that
// decode SR1 themselves may call it directly instead of CheckEvent.
func (c *I2C) HandleEvent(evt Event) (bool, error) {
	if c.released {
		return false, ErrReleased
	}
	if awaited, ok := c.state.Awaiting(); !ok || awaited != evt {
		return false, ErrUnexpectedEvent
	}
	txn := c.txn
	if txn == nil {
		return false, ErrNoTransaction
	}
	c.trace.record(evt, txn.Addr)

	switch evt {
	case StartGenerated:
		c.state = WaitingFor(MasterAcknowledged)

	case MasterAcknowledged:
		addr := uint32(txn.Addr) << 1
		switch txn.Mode() {
		case ModeReceive:
			addr |= 1
		case ModeNone:
			return false, c.abort(ErrEmptyTransaction)
		}
		c.bus.Set(I2CRegDR, addr)
		c.state = WaitingFor(AddressPhaseComplete)

	case AddressPhaseComplete:
		mode := txn.Mode()
		if mode == ModeReceive && txn.remaining() == 1 {
			// NACK the only byte
			modify(c.bus, I2CRegCR1, 0, I2C_CR1_ACK)
		}
		// SR1 was read by the poll; reading SR2 clears ADDR
		c.bus.Get(I2CRegSR2)
		if mode == ModeReceive {
			c.state = WaitingFor(ByteReceived)
		} else {
			c.state = WaitingFor(ReadyToSendByte)
		}

	case ReadyToSendByte:
		b, ok := txn.nextByteToSend()
		if !ok {
			return false, c.abort(ErrEmptyTransaction)
		}
		c.bus.Set(I2CRegDR, uint32(b))
		c.state = WaitingFor(ByteSent)

	case ByteSent:
		switch {
		case txn.NeedsSending():
			c.state = WaitingFor(ReadyToSendByte)
		case txn.NeedsReceiving():
			c.start(ModeReceive)
		default:
			c.stop()
			return true, nil
		}

	case ByteReceived:
		filled, stored := txn.storeReceivedByte(byte(c.bus.Get(I2CRegDR)))
		if !stored {
			return false, c.abort(ErrInvalidState)
		}
		if filled {
			c.stop()
			return true, nil
		}
		if txn.remaining() == 1 {
			// NACK the last byte
			modify(c.bus, I2CRegCR1, 0, I2C_CR1_ACK)
		}
	}
	return false, nil
}

// begin stores txn and issues START.
func (c *I2C) begin(txn *Transaction, eventDriven bool) error {
	if c.released {
		return ErrReleased
	}
	if c.state != StateIdle {
		return ErrBusy
	}
	if txn == nil {
		return ErrNoTransaction
	}
	if txn.Addr > 0x7F {
		return ErrInvalidAddress
	}
	if txn.IsFinished() {
		return ErrEmptyTransaction
	}
	c.txn = txn
	c.eventDriven = eventDriven
	c.start(txn.Mode())
	return nil
}

// start sets START, and ACK when entering a read phase.
func (c *I2C) start(mode TxMode) {
	if mode == ModeReceive {
		modify(c.bus, I2CRegCR1, I2C_CR1_START|I2C_CR1_ACK, 0)
	} else {
		modify(c.bus, I2CRegCR1, I2C_CR1_START, 0)
	}
	c.state = WaitingFor(StartGenerated)
}

// stop sets STOP and returns to Idle.
func (c *I2C) stop() {
	modify(c.bus, I2CRegCR1, I2C_CR1_STOP, 0)
	c.state = StateIdle
}

// ready polls the status registers for evt. Bus error flags win over the
// event flag.
func (c *I2C) ready(evt Event) (bool, error) {
	sr1 := c.bus.Get(I2CRegSR1)
	if err := sr1Error(sr1); err != nil {
		return false, err
	}
	if evt == MasterAcknowledged {
		sr2 := c.bus.Get(I2CRegSR2)
		return sr2&(I2C_SR2_MSL|I2C_SR2_BUSY) != 0, nil
	}
	return sr1&sr1Flag[evt] != 0, nil
}

// abort ends the transaction in progress with err. Error flags are cleared
// and the state returns to Idle so a fresh transaction can start; the stored
// transaction stays retrievable through FinishTransaction.
func (c *I2C) abort(err error) error {
	c.bus.Set(I2CRegSR1, 0xFFFF&^I2C_SR1_ERR_Msk)
	if err == ErrNACK {
		// release the slave
		modify(c.bus, I2CRegCR1, I2C_CR1_STOP, 0)
	}

	msg := "[I2C] " + err.Error() + " " + c.state.String()
	if c.txn != nil {
		msg += " addr=" + hex8(c.txn.Addr) + " sent=" + itoa(c.txn.Sent()) + " recv=" + itoa(c.txn.Received())
	}
	if c.eventDriven {
		DebugAsync(msg)
	} else {
		DebugPrintln(msg)
	}

	c.state = StateIdle
	return err
}
