package core

// I2CReg selects one register of an I2C peripheral instance.
type I2CReg uint8

// Register map of the STM32L1 I2C block, in offset order.
const (
	I2CRegCR1 I2CReg = iota
	I2CRegCR2
	I2CRegOAR1
	I2CRegOAR2
	I2CRegDR
	I2CRegSR1
	I2CRegSR2
	I2CRegCCR
	I2CRegTRISE

	i2cRegCount
)

// Offset returns the byte offset of the register from the peripheral base.
func (r I2CReg) Offset() uintptr {
	return uintptr(r) * 4
}

// CR1 bits
const (
	I2C_CR1_PE    = 1 << 0
	I2C_CR1_START = 1 << 8
	I2C_CR1_STOP  = 1 << 9
	I2C_CR1_ACK   = 1 << 10
	I2C_CR1_SWRST = 1 << 15
)

// CR2 bits
const (
	I2C_CR2_FREQ_Msk = 0x3F
	I2C_CR2_ITERREN  = 1 << 8
	I2C_CR2_ITEVTEN  = 1 << 9
	I2C_CR2_ITBUFEN  = 1 << 10

	I2C_CR2_IRQ_Msk = I2C_CR2_ITERREN | I2C_CR2_ITEVTEN | I2C_CR2_ITBUFEN
)

// SR1 bits
const (
	I2C_SR1_SB      = 1 << 0
	I2C_SR1_ADDR    = 1 << 1
	I2C_SR1_BTF     = 1 << 2
	I2C_SR1_STOPF   = 1 << 4
	I2C_SR1_RXNE    = 1 << 6
	I2C_SR1_TXE     = 1 << 7
	I2C_SR1_BERR    = 1 << 8
	I2C_SR1_ARLO    = 1 << 9
	I2C_SR1_AF      = 1 << 10
	I2C_SR1_OVR     = 1 << 11
	I2C_SR1_TIMEOUT = 1 << 14

	I2C_SR1_ERR_Msk = I2C_SR1_BERR | I2C_SR1_ARLO | I2C_SR1_AF | I2C_SR1_OVR | I2C_SR1_TIMEOUT
)

// SR2 bits
const (
	I2C_SR2_MSL  = 1 << 0
	I2C_SR2_BUSY = 1 << 1
	I2C_SR2_TRA  = 1 << 2
)

// CCR and TRISE fields
const (
	I2C_CCR_CCR_Msk     = 0xFFF
	I2C_CCR_DUTY        = 1 << 14
	I2C_CCR_FS          = 1 << 15
	I2C_TRISE_TRISE_Msk = 0x3F
)

// I2CPeripheral is the register capability of one I2C peripheral instance.
// The engine is written once against it; each physical bus (I2C1, I2C2) and the
// simulator provide their own implementation.
//
// Reads have hardware side effects: reading SR1 then SR2 clears ADDR, reading
// DR clears RxNE. Implementations must not cache.
type I2CPeripheral interface {
	// Get reads a register.
	Get(reg I2CReg) uint32

	// Set writes a register.
	Set(reg I2CReg, value uint32)

	// EnableClock turns on the peripheral clock gate in the RCC.
	EnableClock()

	// Reset pulses the peripheral reset line in the RCC.
	Reset()
}

// I2CPins is the SCL/SDA pair of a bus.
type I2CPins interface {
	// ConfigureForBus puts both lines into the I2C alternate function, open drain.
	ConfigureForBus()

	// RestoreDefault returns both lines to their reset mode.
	RestoreDefault()
}

// modify is a read-modify-write of reg.
func modify(p I2CPeripheral, reg I2CReg, set, clear uint32) {
	p.Set(reg, p.Get(reg)&^clear|set)
}
