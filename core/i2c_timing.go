package core

// DutyCycle selects the SCL low/high ratio used in fast mode.
type DutyCycle uint8

const (
	// Duty2 is tlow/thigh = 2.
	Duty2 DutyCycle = iota
	// Duty16_9 is tlow/thigh = 16/9.
	Duty16_9
)

// SpeedMode is the clock mode programmed into CCR.
type SpeedMode uint8

const (
	StandardMode SpeedMode = iota
	FastModeDuty2
	FastModeDuty16_9
)

func (m SpeedMode) String() string {
	switch m {
	case StandardMode:
		return "standard"
	case FastModeDuty2:
		return "fast 2:1"
	case FastModeDuty16_9:
		return "fast 16:9"
	}
	return "unknown"
}

// StandardModeMax is the highest bus speed served by standard mode.
const StandardModeMax = 100 * KHz

// I2CTiming holds the register values derived from the input clock and bus speed.
type I2CTiming struct {
	Freq    uint8  // CR2.FREQ, input clock in whole MHz
	Rise    uint8  // TRISE
	Divisor uint16 // CCR.CCR
	Mode    SpeedMode
}

// CCR returns the value to write to the CCR register.
func (t I2CTiming) CCR() uint32 {
	ccr := uint32(t.Divisor) & I2C_CCR_CCR_Msk
	switch t.Mode {
	case FastModeDuty2:
		ccr |= I2C_CCR_FS
	case FastModeDuty16_9:
		ccr |= I2C_CCR_FS | I2C_CCR_DUTY
	}
	return ccr
}

// CalculateI2CTiming maps the peripheral input clock and the requested bus
// speed to CR2/TRISE/CCR settings. The duty cycle only matters above 100 kHz.
func CalculateI2CTiming(clock, speed Hertz, duty DutyCycle) (I2CTiming, error) {
	if speed == 0 {
		return I2CTiming{}, ErrInvalidSpeed
	}

	freq := uint32(clock) / 1000000
	if freq < 2 || freq > 50 {
		return I2CTiming{}, ErrClockOutOfRange
	}

	t := I2CTiming{Freq: uint8(freq)}

	hz, bus := uint64(clock), uint64(speed)
	var ccr uint64
	if speed <= StandardModeMax {
		t.Rise = uint8(freq + 1)
		t.Mode = StandardMode
		ccr = max(4, hz/(bus*2))
	} else {
		t.Rise = uint8(freq*300/1000 + 1)
		if duty == Duty16_9 {
			t.Mode = FastModeDuty16_9
			ccr = max(1, hz/(bus*25))
		} else {
			t.Mode = FastModeDuty2
			ccr = max(1, hz/(bus*3))
		}
	}
	if ccr > I2C_CCR_CCR_Msk {
		return I2CTiming{}, ErrDivisorOverflow
	}
	t.Divisor = uint16(ccr)

	return t, nil
}
