//go:build stm32l1

package main

import (
	"runtime/interrupt"
	"sync/atomic"
	"time"

	"l1hal/core"
)

// IRQ numbers of I2C1 in the STM32L1 vector table.
const (
	irqI2C1EV = 31
	irqI2C1ER = 32
)

const (
	bridgeBaud = 250000
	debugBaud  = 115200
	sensorAddr = 0x60
)

var (
	// sensorBus is polled from its interrupt handlers
	sensorBus  *core.I2C
	sensorBuf  [1]byte
	sensorDone atomic.Bool
	sensorErr  error
)

func main() {
	clocks := initClocks()
	link := USART1.open(clocks, bridgeBaud)

	debug := USART2.open(clocks, debugBaud)
	core.SetDebugWriter(debug.WriteLine)
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	srv := core.NewServer(link)
	srv.Dictionary().AddConstant("CLOCK_FREQ", clocks.SysClk)
	srv.Dictionary().AddEnumeration("i2c_bus", []string{"i2c2"})

	// bus 0 for the host: I2C2 on PB10/PB11 at 10 kHz
	bridgeBus, err := OpenI2C2(I2C2_PB10_PB11, core.I2CConfig{Frequency: 10 * core.KHz}, clocks)
	if err != nil {
		panic(err)
	}
	srv.SetI2CBus(0, bridgeBus)

	// I2C1 polls a sensor in the background, interrupt-driven
	sensorBus, err = OpenI2C1(I2C1_PB6_PB7, core.I2CConfig{Frequency: 100 * core.KHz}, clocks)
	if err != nil {
		panic(err)
	}
	interrupt.New(irqI2C1EV, handleSensorIRQ).Enable()
	interrupt.New(irqI2C1ER, handleSensorIRQ).Enable()
	go pollSensor()

	for {
		if err := srv.Serve(link); err != nil {
			core.DebugPrintln("[MAIN] serve: " + err.Error())
		}
	}
}

// pollSensor starts a one-byte read every second and collects the result
// once the interrupt handler reports it finished.
func pollSensor() {
	for {
		err := sensorBus.StartTransaction(core.ReadTransaction(sensorAddr, sensorBuf[:]))
		started := err == nil
		if started {
			sensorBus.EnableIRQs()
		} else {
			core.DebugPrintln("[SENSOR] start: " + err.Error())
		}

		time.Sleep(time.Second)

		sensorBus.DisableIRQs()
		done := sensorDone.Swap(false)
		if started {
			if _, err := sensorBus.FinishTransaction(); err != nil {
				core.DebugPrintln("[SENSOR] finish: " + err.Error())
			}
		}
		// a handler already pending finds no transaction and leaves the flag
		// alone; clear anything it set before that
		sensorDone.Store(false)

		if !done {
			// no completion within a second
			if bus, err := sensorBus.Reinit(); err == nil {
				sensorBus = bus
			} else {
				core.DebugPrintln("[SENSOR] reinit: " + err.Error())
			}
			continue
		}
		if sensorErr != nil {
			core.DebugPrintln("[SENSOR] " + sensorErr.Error())
		} else {
			core.DebugPrintln("[SENSOR] read ok")
		}
	}
}

// handleSensorIRQ advances the sensor transaction as far as the status flags
// allow.
func handleSensorIRQ(interrupt.Interrupt) {
	if !sensorBus.IsTransaction() {
		return
	}
	for {
		done, err := sensorBus.CheckEvent()
		if err == core.ErrWouldBlock {
			return
		}
		if done || err != nil {
			sensorBus.DisableIRQs()
			sensorErr = err
			sensorDone.Store(true)
			return
		}
	}
}
