//go:build stm32l1

package main

import "l1hal/core"

// USART register offsets and bits
const (
	usartSR  = 0x00
	usartDR  = 0x04
	usartBRR = 0x08
	usartCR1 = 0x0C

	usartSRRXNE = 1 << 5
	usartSRTXE  = 1 << 7

	usartCR1RE = 1 << 2
	usartCR1TE = 1 << 3
	usartCR1UE = 1 << 13
)

const afUSART = 7

// uartPort describes one USART and its pins on GPIOA.
type uartPort struct {
	base   uintptr
	enReg  uintptr
	enBit  uint32
	tx, rx uint8
	apb2   bool
}

var (
	// USART1 on PA9/PA10 carries the host bridge.
	USART1 = uartPort{base: usart1Base, enReg: rccAPB2ENR, enBit: rccAPB2ENRUSART1EN, tx: 9, rx: 10, apb2: true}
	// USART2 on PA2/PA3 carries debug output.
	USART2 = uartPort{base: usart2Base, enReg: rccAPB1ENR, enBit: rccAPB1USART2, tx: 2, rx: 3}
)

// uart is a polled USART. Read never blocks.
type uart struct {
	base uintptr
}

func (p uartPort) open(clocks core.Clocks, baud uint32) *uart {
	modifyReg(rccAHBENR, rccAHBENRGPIOAEN, 0)
	modifyReg(p.enReg, p.enBit, 0)
	gpioPin{gpioaBase, p.tx}.setAlternate(afUSART, false)
	gpioPin{gpioaBase, p.rx}.setAlternate(afUSART, false)

	clk := clocks.APB1()
	if p.apb2 {
		clk = clocks.APB2()
	}
	u := &uart{base: p.base}
	// 16x oversampling: BRR holds the divisor in 1/16ths
	reg(u.base + usartBRR).Set((uint32(clk) + baud/2) / baud)
	reg(u.base + usartCR1).Set(usartCR1UE | usartCR1TE | usartCR1RE)
	return u
}

// Read returns the bytes already received, possibly none.
func (u *uart) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && reg(u.base+usartSR).Get()&usartSRRXNE != 0 {
		p[n] = byte(reg(u.base + usartDR).Get())
		n++
	}
	return n, nil
}

// Write blocks until every byte is in the transmit register.
func (u *uart) Write(p []byte) (int, error) {
	for _, b := range p {
		waitBits(u.base+usartSR, usartSRTXE, usartSRTXE)
		reg(u.base + usartDR).Set(uint32(b))
	}
	return len(p), nil
}

// WriteLine writes s and a line ending.
func (u *uart) WriteLine(s string) {
	u.Write([]byte(s))
	u.Write([]byte("\r\n"))
}
