//go:build stm32l1

package main

import "l1hal/core"

// i2cPeripheral is one I2C block reached through volatile register access.
type i2cPeripheral struct {
	base uintptr
	bit  uint32 // enable and reset bit in the APB1 RCC registers
}

var (
	I2C1 = &i2cPeripheral{base: i2c1Base, bit: rccAPB1I2C1}
	I2C2 = &i2cPeripheral{base: i2c2Base, bit: rccAPB1I2C2}
)

func (p *i2cPeripheral) Get(r core.I2CReg) uint32 {
	return reg(p.base + r.Offset()).Get()
}

func (p *i2cPeripheral) Set(r core.I2CReg, v uint32) {
	reg(p.base + r.Offset()).Set(v)
}

func (p *i2cPeripheral) EnableClock() {
	modifyReg(rccAPB1ENR, p.bit, 0)
}

func (p *i2cPeripheral) Reset() {
	modifyReg(rccAPB1RSTR, p.bit, 0)
	modifyReg(rccAPB1RSTR, 0, p.bit)
}

// GPIO register offsets
const (
	gpioMODER   = 0x00
	gpioOTYPER  = 0x04
	gpioOSPEEDR = 0x08
	gpioPUPDR   = 0x0C
	gpioAFRL    = 0x20
	gpioAFRH    = 0x24
)

// gpioPin is one pin of a GPIO port.
type gpioPin struct {
	port uintptr
	n    uint8
}

// setAlternate selects alternate function af. Open-drain pins also get the
// weak pull-up.
func (p gpioPin) setAlternate(af uint32, openDrain bool) {
	shift2 := uint32(p.n) * 2
	modifyReg(p.port+gpioMODER, 0x2<<shift2, 0x3<<shift2)
	modifyReg(p.port+gpioOSPEEDR, 0x2<<shift2, 0x3<<shift2)
	if openDrain {
		modifyReg(p.port+gpioOTYPER, 1<<p.n, 0)
		modifyReg(p.port+gpioPUPDR, 0x1<<shift2, 0x3<<shift2)
	}

	afr, shift4 := uintptr(gpioAFRL), uint32(p.n)*4
	if p.n >= 8 {
		afr, shift4 = gpioAFRH, uint32(p.n-8)*4
	}
	modifyReg(p.port+afr, af<<shift4, 0xF<<shift4)
}

// reset returns the pin to a floating input.
func (p gpioPin) reset() {
	shift2 := uint32(p.n) * 2
	modifyReg(p.port+gpioMODER, 0, 0x3<<shift2)
	modifyReg(p.port+gpioOTYPER, 0, 1<<p.n)
	modifyReg(p.port+gpioOSPEEDR, 0, 0x3<<shift2)
	modifyReg(p.port+gpioPUPDR, 0, 0x3<<shift2)

	afr, shift4 := uintptr(gpioAFRL), uint32(p.n)*4
	if p.n >= 8 {
		afr, shift4 = gpioAFRH, uint32(p.n-8)*4
	}
	modifyReg(p.port+afr, 0, 0xF<<shift4)
}

const afI2C = 4

// i2cPins is an SCL/SDA pair on GPIOB. The pairs each block can use are
// distinct types, so a wrong pairing does not compile.
type i2cPins struct {
	scl, sda gpioPin
}

func (p *i2cPins) ConfigureForBus() {
	modifyReg(rccAHBENR, rccAHBENRGPIOBEN, 0)
	p.scl.setAlternate(afI2C, true)
	p.sda.setAlternate(afI2C, true)
}

func (p *i2cPins) RestoreDefault() {
	p.scl.reset()
	p.sda.reset()
}

// I2C1Pins is a pin pair routed to I2C1.
type I2C1Pins struct{ i2cPins }

// I2C2Pins is a pin pair routed to I2C2.
type I2C2Pins struct{ i2cPins }

var (
	I2C1_PB6_PB7   = &I2C1Pins{i2cPins{gpioPin{gpiobBase, 6}, gpioPin{gpiobBase, 7}}}
	I2C1_PB8_PB9   = &I2C1Pins{i2cPins{gpioPin{gpiobBase, 8}, gpioPin{gpiobBase, 9}}}
	I2C2_PB10_PB11 = &I2C2Pins{i2cPins{gpioPin{gpiobBase, 10}, gpioPin{gpiobBase, 11}}}
)

// OpenI2C1 opens I2C1 on pins.
func OpenI2C1(pins *I2C1Pins, cfg core.I2CConfig, clocks core.ClockSource) (*core.I2C, error) {
	return core.OpenI2CConfig(I2C1, pins, cfg, clocks)
}

// OpenI2C2 opens I2C2 on pins.
func OpenI2C2(pins *I2C2Pins, cfg core.I2CConfig, clocks core.ClockSource) (*core.I2C, error) {
	return core.OpenI2CConfig(I2C2, pins, cfg, clocks)
}
