//go:build !tinygo

package core

import "sync/atomic"

// interruptState is a placeholder for the saved interrupt mask on regular Go
type interruptState uintptr

// There are no interrupts on regular Go. The counters record how often a mask
// was taken and how many are still held, for tests.
var maskSections, maskDepth atomic.Int32

// disableInterrupts only counts on regular Go
func disableInterrupts() interruptState {
	maskSections.Add(1)
	maskDepth.Add(1)
	return 0
}

// restoreInterrupts only counts on regular Go
func restoreInterrupts(state interruptState) {
	maskDepth.Add(-1)
}
