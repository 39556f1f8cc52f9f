package core

// Hertz is a frequency in Hz.
type Hertz uint32

const (
	KHz Hertz = 1000
	MHz Hertz = 1000 * KHz
)

// Clocks is a frozen snapshot of the clock tree.
// Target code fills it in once the RCC has been configured.
type Clocks struct {
	SysClk  Hertz
	AHBClk  Hertz
	APB1Clk Hertz
	APB2Clk Hertz
}

// ClockSource supplies the input clock of the APB1 peripherals (I2C1, I2C2).
type ClockSource interface {
	APB1() Hertz
}

// APB1 returns the APB1 peripheral clock.
func (c Clocks) APB1() Hertz {
	return c.APB1Clk
}

// APB2 returns the APB2 peripheral clock.
func (c Clocks) APB2() Hertz {
	return c.APB2Clk
}

// MSIClocks returns the reset clock tree: MSI range 5 (2.097 MHz), no prescalers.
func MSIClocks() Clocks {
	const msi = 2097000
	return Clocks{SysClk: msi, AHBClk: msi, APB1Clk: msi, APB2Clk: msi}
}
