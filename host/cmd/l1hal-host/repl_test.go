package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"l1hal/host/config"
	"l1hal/host/mcu"
)

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	sim, err := newSimBoard()
	require.NoError(t, err)
	m := mcu.NewMCU()
	m.Attach(sim.Link())
	t.Cleanup(func() {
		m.Close()
		sim.Close()
	})
	require.NoError(t, m.RetrieveDictionary())

	profile := config.Default()
	profile.Devices = []config.Device{{Name: "eeprom", Bus: 1, Addr: 0x50}}

	var out bytes.Buffer
	return &repl{mcu: m, profile: profile, out: &out}, &out
}

func TestREPLSession(t *testing.T) {
	r, out := newTestREPL(t)

	script := strings.Join([]string{
		"write 0 0x50 10 deadbeef",
		"trace 0",
		"read 0 0x50 4 0x10",
		`read eeprom 1 "00"`,
		"",
		"reset 0",
		"quit",
		"read 0 0x50 1",
	}, "\n")
	require.NoError(t, r.run(strings.NewReader(script)))

	got := out.String()
	require.Contains(t, got, "wrote 5 bytes")
	require.Contains(t, got, "de ad be ef\n")
	require.Contains(t, got, "00\n")
	require.Contains(t, got, "#1 StartGenerated addr=0x50")
	require.Contains(t, got, "bus 0 reset")
	require.Equal(t, 7, strings.Count(got, "> "))
}

func TestREPLResync(t *testing.T) {
	r, out := newTestREPL(t)
	tr := r.mcu.Transport()

	require.NoError(t, r.execute("write 0 0x50 10 aa"))

	require.NoError(t, r.execute("resync"))
	require.Contains(t, out.String(), "link resynced")
	require.Zero(t, tr.Sequence())

	// the next command picks up the device's sequence again
	require.NoError(t, r.execute("read 0 0x50 1 10"))
	require.Contains(t, out.String(), "aa\n")
}

func TestREPLErrors(t *testing.T) {
	r, out := newTestREPL(t)

	testCases := []struct {
		line string
		want string
	}{
		{"frobnicate", `unknown command "frobnicate"`},
		{"write", "missing target"},
		{"write 0", "missing address"},
		{"write 0 0x50", "nothing to write"},
		{"write 0 0x50 zz", `bad hex "zz"`},
		{"write 0 0x33 00", "not acknowledged"},
		{"read 0 0x50", "missing count"},
		{"read 0 0x50 0", "invalid configuration"},
		{"reset 9", "unknown bus"},
		{"reset x", `bad bus "x"`},
		{`write "0`, "EOF"},
		{"poll", "no device in the profile has a poll entry"},
	}

	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			err := r.execute(tc.line)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}

	require.Equal(t, errQuit, r.execute("exit"))
	require.NoError(t, r.execute("help"))
	require.NoError(t, r.execute("devices"))
	require.NoError(t, r.execute("dict"))
	require.Contains(t, out.String(), "eeprom")
	require.Contains(t, out.String(), "i2c_write bus=%c addr=%c data=%*s")
}

func TestREPLPoll(t *testing.T) {
	r, out := newTestREPL(t)
	r.profile.Devices[0].Poll = &config.Poll{Reg: config.HexBytes{0x00}, Len: 2}

	require.NoError(t, r.execute("write eeprom 00 cafe"))
	require.NoError(t, r.execute("poll"))
	require.Contains(t, out.String(), `eeprom {"device":"eeprom","bus":1,"addr":80,`)
	require.Contains(t, out.String(), `"data":"cafe"`)

	require.NoError(t, r.execute("devices"))
	require.Contains(t, out.String(), "poll 2 bytes")
}

func TestParseHex(t *testing.T) {
	b, err := parseHex([]string{"0x1", "AB", "c0ffee"})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0xAB, 0xC0, 0xFF, 0xEE}, b)
}
