//go:build stm32l1

package main

import "l1hal/core"

const hsiFrequency = 16 * core.MHz

// initClocks switches SYSCLK from the 2.097 MHz MSI to the 16 MHz HSI, no
// prescalers. The UART needs an exact divisor for 250000 baud.
func initClocks() core.Clocks {
	// one wait state with 64-bit access above 8 MHz in voltage range 2
	modifyReg(flashACR, flashACRACC64, 0)
	modifyReg(flashACR, flashACRLatency, 0)

	modifyReg(rccCR, rccCRHSION, 0)
	waitBits(rccCR, rccCRHSIRDY, rccCRHSIRDY)

	modifyReg(rccCFGR, rccCFGRSWHSI, rccCFGRSWMsk)
	waitBits(rccCFGR, rccCFGRSWSMsk, rccCFGRSWSHSI)

	return core.Clocks{
		SysClk:  hsiFrequency,
		AHBClk:  hsiFrequency,
		APB1Clk: hsiFrequency,
		APB2Clk: hsiFrequency,
	}
}
