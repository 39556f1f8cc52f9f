package core

// Event is a step of the bus-master sequence. The order is fixed by the
// protocol: start, mastership, address, then data bytes.
type Event uint8

const (
	StartGenerated       Event = iota // SR1.SB: START condition is on the bus
	MasterAcknowledged                // SR2.MSL/BUSY: we own the bus
	AddressPhaseComplete              // SR1.ADDR: address acknowledged
	ReadyToSendByte                   // SR1.TxE: DR can take a byte
	ByteSent                          // SR1.BTF: byte shifted out
	ByteReceived                      // SR1.RxNE: DR holds a byte

	eventCount
)

var eventNames = [eventCount]string{
	StartGenerated:       "StartGenerated",
	MasterAcknowledged:   "MasterAcknowledged",
	AddressPhaseComplete: "AddressPhaseComplete",
	ReadyToSendByte:      "ReadyToSendByte",
	ByteSent:             "ByteSent",
	ByteReceived:         "ByteReceived",
}

func (e Event) String() string {
	if e < eventCount {
		return eventNames[e]
	}
	return "Event(" + itoa(int(e)) + ")"
}

// sr1Flag is the SR1 bit that signals the event. MasterAcknowledged is read
// from SR2 instead.
var sr1Flag = [eventCount]uint32{
	StartGenerated:       I2C_SR1_SB,
	AddressPhaseComplete: I2C_SR1_ADDR,
	ReadyToSendByte:      I2C_SR1_TXE,
	ByteSent:             I2C_SR1_BTF,
	ByteReceived:         I2C_SR1_RXNE,
}

// State is either Idle or waiting for exactly one Event.
type State uint8

// StateIdle is the state before a transaction starts and after STOP.
const StateIdle State = 0

// WaitingFor returns the state that awaits e.
func WaitingFor(e Event) State {
	return State(e) + 1
}

// Awaiting returns the awaited event; ok is false when idle.
func (s State) Awaiting() (e Event, ok bool) {
	if s == StateIdle {
		return 0, false
	}
	return Event(s - 1), true
}

func (s State) String() string {
	if e, ok := s.Awaiting(); ok {
		return "waiting for " + e.String()
	}
	return "idle"
}
