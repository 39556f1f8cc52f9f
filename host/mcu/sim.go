package mcu

import (
	"io"
	"net"
	"sync"

	"l1hal/core"
)

// simClocks is an 8 MHz HSI tree.
var simClocks = core.Clocks{SysClk: 8 * core.MHz, AHBClk: 8 * core.MHz, APB1Clk: 8 * core.MHz, APB2Clk: 8 * core.MHz}

// Simulator runs the bridge firmware in-process over simulated I2C
// peripherals, for use without a board.
type Simulator struct {
	Server *core.Server
	Buses  []*core.SimulatedI2C

	host, dev net.Conn
	done      chan error
	closeOnce sync.Once
	closeErr  error
}

// NewSimulator starts a firmware server with nbus simulated buses at 100 kHz.
// Devices are attached through Buses.
func NewSimulator(nbus int) (*Simulator, error) {
	hostEnd, devEnd := net.Pipe()
	s := &Simulator{
		Server: core.NewServer(devEnd),
		host:   hostEnd,
		dev:    devEnd,
		done:   make(chan error, 1),
	}

	for i := 0; i < nbus; i++ {
		bus := core.NewSimulatedI2C()
		c, err := core.OpenI2C(bus, &core.SimPins{}, 100*core.KHz, simClocks)
		if err == nil {
			err = s.Server.SetI2CBus(uint8(i), c)
		}
		if err != nil {
			hostEnd.Close()
			devEnd.Close()
			return nil, err
		}
		s.Buses = append(s.Buses, bus)
	}

	go func() { s.done <- s.Server.Serve(devEnd) }()
	return s, nil
}

// Link returns the host end of the connection.
func (s *Simulator) Link() io.ReadWriteCloser {
	return s.host
}

// Close stops the server and waits for it.
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() {
		s.dev.Close()
		s.host.Close()
		if err := <-s.done; err != io.ErrClosedPipe {
			s.closeErr = err
		}
	})
	return s.closeErr
}
