//go:build stm32l1

package main

import (
	"runtime/volatile"
	"unsafe"
)

// Peripheral base addresses (RM0038, memory map).
const (
	usart2Base = 0x40004400
	i2c1Base   = 0x40005400
	i2c2Base   = 0x40005800
	usart1Base = 0x40013800
	gpioaBase  = 0x40020000
	gpiobBase  = 0x40020400
	rccBase    = 0x40023800
	flashBase  = 0x40023C00
)

// RCC registers and bits
const (
	rccCR       = rccBase + 0x00
	rccCFGR     = rccBase + 0x08
	rccAPB1RSTR = rccBase + 0x18
	rccAHBENR   = rccBase + 0x1C
	rccAPB2ENR  = rccBase + 0x20
	rccAPB1ENR  = rccBase + 0x24

	rccCRHSION  = 1 << 0
	rccCRHSIRDY = 1 << 1

	rccCFGRSWMsk  = 0x3
	rccCFGRSWHSI  = 0x1
	rccCFGRSWSMsk = 0x3 << 2
	rccCFGRSWSHSI = 0x1 << 2

	rccAHBENRGPIOAEN   = 1 << 0
	rccAHBENRGPIOBEN   = 1 << 1
	rccAPB2ENRUSART1EN = 1 << 14
	rccAPB1USART2      = 1 << 17
	rccAPB1I2C1        = 1 << 21
	rccAPB1I2C2        = 1 << 22
)

// FLASH_ACR bits
const (
	flashACR        = flashBase + 0x00
	flashACRLatency = 1 << 0
	flashACRACC64   = 1 << 2
)

// reg returns the 32-bit register at addr.
func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// modifyReg is a read-modify-write of the register at addr.
func modifyReg(addr uintptr, set, clear uint32) {
	r := reg(addr)
	r.Set(r.Get()&^clear | set)
}

// waitBits spins until the bits of mask at addr equal want.
func waitBits(addr uintptr, mask, want uint32) {
	for reg(addr).Get()&mask != want {
	}
}
