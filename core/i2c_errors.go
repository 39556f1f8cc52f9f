package core

import "errors"

// Bus errors. Every status read checks the SR1 error flags and reports the
// first one set; no retry is attempted.
var (
	ErrOverrun         = errors.New("i2c: overrun")
	ErrNACK            = errors.New("i2c: not acknowledged")
	ErrBusError        = errors.New("i2c: bus error")
	ErrArbitrationLost = errors.New("i2c: arbitration lost")
	ErrTimeout         = errors.New("i2c: timeout")

	// ErrWouldBlock is returned by CheckEvent when the awaited flag is not set
	// yet. It is the only error that means "poll again".
	ErrWouldBlock = errors.New("i2c: would block")

	// ErrInvalidState reports misuse of the controller: no transaction, a
	// transaction with nothing to transfer, or an event the state machine is
	// not waiting for.
	ErrInvalidState = errors.New("i2c: invalid state")
)

// Narrower forms of ErrInvalidState.
var (
	ErrNoTransaction    = &stateError{"no transaction"}
	ErrEmptyTransaction = &stateError{"nothing to transfer"}
	ErrUnexpectedEvent  = &stateError{"unexpected event"}
	ErrBusy             = &stateError{"transaction in progress"}
	ErrReleased         = &stateError{"controller released"}
)

// Configuration errors, reported before any register is touched.
var (
	ErrInvalidConfig   = errors.New("i2c: invalid configuration")
	ErrClockOutOfRange = &configError{"input clock outside 2..50 MHz"}
	ErrInvalidSpeed    = &configError{"bus speed must be non-zero"}
	ErrDivisorOverflow = &configError{"clock divisor does not fit CCR"}

	// ErrInvalidAddress is returned, before START, for an address that does
	// not fit 7 bits.
	ErrInvalidAddress = &configError{"address does not fit 7 bits"}
)

type stateError struct{ msg string }

func (e *stateError) Error() string { return "i2c: invalid state: " + e.msg }
func (e *stateError) Unwrap() error { return ErrInvalidState }

type configError struct{ msg string }

func (e *configError) Error() string { return "i2c: invalid configuration: " + e.msg }
func (e *configError) Unwrap() error { return ErrInvalidConfig }

// sr1Error maps SR1 error flags to an error, or nil.
func sr1Error(sr1 uint32) error {
	switch {
	case sr1&I2C_SR1_AF != 0:
		return ErrNACK
	case sr1&I2C_SR1_OVR != 0:
		return ErrOverrun
	case sr1&I2C_SR1_ARLO != 0:
		return ErrArbitrationLost
	case sr1&I2C_SR1_BERR != 0:
		return ErrBusError
	case sr1&I2C_SR1_TIMEOUT != 0:
		return ErrTimeout
	}
	return nil
}

// Status codes carried by i2c_status and i2c_read_response.
const (
	StatusOK uint8 = iota
	StatusNACK
	StatusOverrun
	StatusBusError
	StatusArbitrationLost
	StatusTimeout
	StatusInvalidState
	StatusInvalidConfig
	StatusUnknownBus
	StatusFailed
)

// ErrUnknownBus is returned for a bus id with no registered controller.
var ErrUnknownBus = errors.New("i2c: unknown bus")

var statusErrors = [...]error{
	StatusNACK:            ErrNACK,
	StatusOverrun:         ErrOverrun,
	StatusBusError:        ErrBusError,
	StatusArbitrationLost: ErrArbitrationLost,
	StatusTimeout:         ErrTimeout,
	StatusInvalidState:    ErrInvalidState,
	StatusInvalidConfig:   ErrInvalidConfig,
	StatusUnknownBus:      ErrUnknownBus,
}

// ErrorCode returns the wire status for err.
func ErrorCode(err error) uint8 {
	if err == nil {
		return StatusOK
	}
	for code, target := range statusErrors {
		if target != nil && errors.Is(err, target) {
			return uint8(code)
		}
	}
	return StatusFailed
}

// CodeError is the inverse of ErrorCode.
func CodeError(code uint8) error {
	if code == StatusOK {
		return nil
	}
	if int(code) < len(statusErrors) && statusErrors[code] != nil {
		return statusErrors[code]
	}
	return errors.New("i2c: failed, status " + itoa(int(code)))
}
