package mcu

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"l1hal/core"
	"l1hal/protocol"
)

const eepromAddr = 0x50

func newSimMCU(t *testing.T) (*MCU, *Simulator, *core.SimRegisterDevice) {
	t.Helper()
	sim, err := NewSimulator(2)
	require.NoError(t, err)
	dev := core.NewSimRegisterDevice(256)
	sim.Buses[0].Attach(eepromAddr, dev)

	m := NewMCU()
	m.Attach(sim.Link())
	t.Cleanup(func() {
		m.Close()
		sim.Close()
	})
	require.NoError(t, m.RetrieveDictionary())
	return m, sim, dev
}

func TestRetrieveDictionary(t *testing.T) {
	m, _, _ := newSimMCU(t)

	dict := m.GetDictionary()
	require.NotNil(t, dict)
	require.Equal(t, protocol.Version, dict.Version)
	require.Equal(t, "stm32l1", dict.Config["MCU"])

	id, nargs, ok := dict.CommandID("i2c_read")
	require.True(t, ok)
	require.Equal(t, 4, nargs)
	require.Equal(t, "i2c_read bus=%c addr=%c reg=%*s read_len=%c", formatOf(dict.Commands, id))
	_, nargs, _ = dict.CommandID("identify")
	require.Equal(t, 2, nargs)
	rid, ok := dict.ResponseID("identify_response")
	require.True(t, ok)
	require.Zero(t, rid)

	require.True(t, json.Valid(m.GetDictionaryRaw()))

	var out bytes.Buffer
	m.PrintDictionary(&out)
	require.Contains(t, out.String(), "[1] identify offset=%u count=%c")
	require.Contains(t, out.String(), "MCU = stm32l1")
}

func formatOf(table map[string]int, id int) string {
	for f, v := range table {
		if v == id {
			return f
		}
	}
	return ""
}

func TestI2CWriteRead(t *testing.T) {
	m, _, dev := newSimMCU(t)

	require.NoError(t, m.I2CWrite(0, eepromAddr, []byte{0x40, 1, 2, 3, 4}))
	require.Equal(t, []byte{1, 2, 3, 4}, dev.Mem[0x40:0x44])

	data, err := m.I2CRead(0, eepromAddr, []byte{0x41}, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, data)

	dev.Mem[0x44] = 0x99
	data, err = m.I2CRead(0, eepromAddr, nil, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x99}, data)
}

func TestI2CErrors(t *testing.T) {
	m, _, dev := newSimMCU(t)

	err := m.I2CWrite(0, 0x33, []byte{0})
	require.ErrorIs(t, err, core.ErrNACK)
	require.Contains(t, err.Error(), "write bus 0 addr 0x33")

	_, err = m.I2CRead(1, eepromAddr, []byte{0}, 2)
	require.ErrorIs(t, err, core.ErrNACK)

	require.ErrorIs(t, m.I2CWrite(3, eepromAddr, []byte{0}), core.ErrUnknownBus)
	require.ErrorIs(t, m.I2CReset(3), core.ErrUnknownBus)

	_, err = m.I2CRead(0, eepromAddr, nil, 0)
	require.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = m.I2CRead(0, eepromAddr, nil, core.MaxI2CRead+1)
	require.ErrorIs(t, err, core.ErrReadLength)

	require.ErrorIs(t, m.I2CWrite(0, eepromAddr|0x80, []byte{0x10, 0xAB}), core.ErrInvalidConfig)
	require.Zero(t, dev.Mem[0x10])

	// the link is still usable
	require.NoError(t, m.I2CWrite(0, eepromAddr, []byte{0x00}))
}

func TestI2CResetAndTrace(t *testing.T) {
	m, sim, _ := newSimMCU(t)

	require.NoError(t, m.I2CWrite(0, eepromAddr, []byte{0x10, 0xAB}))
	events, err := m.I2CTrace(0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, core.StartGenerated, events[0].Event)
	require.Equal(t, uint8(eepromAddr), events[0].Addr)
	require.Equal(t, uint32(1), events[0].Seq)

	resets := sim.Buses[0].Resets()
	require.NoError(t, m.I2CReset(0))
	require.Equal(t, resets+1, sim.Buses[0].Resets())

	events, err = m.I2CTrace(0)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestCallValidation(t *testing.T) {
	_, err := NewMCU().Call("i2c_reset", "i2c_status", uint8(0))
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, NewMCU().Close(), ErrNotConnected)

	sim, err := NewSimulator(1)
	require.NoError(t, err)
	defer sim.Close()
	m := NewMCU()
	m.Attach(sim.Link())
	defer m.Close()
	require.True(t, m.IsConnected())

	_, err = m.Call("i2c_reset", "i2c_status", uint8(0))
	require.ErrorIs(t, err, ErrNoDictionary)

	require.NoError(t, m.RetrieveDictionary())
	_, err = m.Call("spi_send", "i2c_status")
	require.ErrorContains(t, err, `unknown command "spi_send"`)
	_, err = m.Call("i2c_reset", "nope", uint8(0))
	require.ErrorContains(t, err, `unknown response "nope"`)
	_, err = m.Call("i2c_reset", "i2c_status")
	require.ErrorContains(t, err, "takes 1 arguments, got 0")
	_, err = m.Call("i2c_reset", "i2c_status", "zero")
	require.ErrorContains(t, err, "unsupported type string")
}

func TestRetrieveDictionaryNoDevice(t *testing.T) {
	hostEnd, devEnd := net.Pipe()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := devEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	m := NewMCU()
	tr := m.Attach(hostEnd)
	tr.AckTimeout = 10 * time.Millisecond
	tr.Retries = 1
	defer m.Close()

	err := m.RetrieveDictionary()
	require.ErrorContains(t, err, "identify at offset 0")
	require.Nil(t, m.GetDictionary())
}
