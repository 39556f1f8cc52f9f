//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so an I2C event handler cannot step the
// controller while mainline code inspects or takes its transaction
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
