// Package config loads host profiles: the link settings and the I2C devices
// the host tool can address by name.
package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"l1hal/core"
	"l1hal/host/serial"
	"l1hal/protocol"
)

// Duration is a time.Duration written as a string ("250ms") in JSON.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// HexBytes is a byte string written as hex ("0xfa01" or "fa01") in JSON.
type HexBytes []byte

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("hex bytes must be a string: %w", err)
	}
	v, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// Poll is a read the host repeats and publishes.
type Poll struct {
	Reg HexBytes `json:"reg,omitempty"`
	Len int      `json:"len"`
}

// Device is an I2C target reachable through the bridge.
type Device struct {
	Name string `json:"name"`
	Bus  uint8  `json:"bus"`
	Addr uint8  `json:"addr"`
	Poll *Poll  `json:"poll,omitempty"`
}

// Profile is a host configuration file.
type Profile struct {
	Serial      string   `json:"serial"`
	Baud        int      `json:"baud"`
	ReadTimeout Duration `json:"read_timeout"`
	AckTimeout  Duration `json:"ack_timeout"`
	Retries     int      `json:"retries"`
	Devices     []Device `json:"devices"`

	// MQTT is the broker URL polled readings are published to, e.g.
	// "mqtt://localhost:1883/l1hal/". Empty disables publishing.
	MQTT         string   `json:"mqtt,omitempty"`
	PollInterval Duration `json:"poll_interval"`
}

// Default returns the profile used without a file.
func Default() *Profile {
	s := serial.DefaultConfig("/dev/ttyACM0")
	return &Profile{
		Serial:      s.Device,
		Baud:        s.Baud,
		ReadTimeout: Duration(s.ReadTimeout),
		AckTimeout:  Duration(protocol.DefaultAckTimeout),
		Retries:     protocol.DefaultRetries,

		PollInterval: Duration(time.Second),
	}
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a profile. Missing fields keep their Default values.
func Parse(r io.Reader) (*Profile, error) {
	p := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the link settings and device table.
func (p *Profile) Validate() error {
	var errs []error
	if p.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud %d must be positive", p.Baud))
	}
	if p.AckTimeout <= 0 {
		errs = append(errs, errors.New("ack_timeout must be positive"))
	}
	if p.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries %d must not be negative", p.Retries))
	}
	if p.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}

	seen := make(map[string]bool)
	for i, d := range p.Devices {
		switch {
		case d.Name == "":
			errs = append(errs, fmt.Errorf("device %d: missing name", i))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("device %q: duplicate name", d.Name))
		}
		seen[d.Name] = true
		if d.Addr > 0x7F {
			errs = append(errs, fmt.Errorf("device %q: address 0x%02x is not 7-bit", d.Name, d.Addr))
		}
		if int(d.Bus) >= core.MaxI2CBuses {
			errs = append(errs, fmt.Errorf("device %q: bus %d out of range", d.Name, d.Bus))
		}
		if d.Poll != nil && (d.Poll.Len <= 0 || d.Poll.Len > core.MaxI2CRead) {
			errs = append(errs, fmt.Errorf("device %q: poll len %d outside 1..%d", d.Name, d.Poll.Len, core.MaxI2CRead))
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the device called name.
func (p *Profile) Lookup(name string) (Device, bool) {
	for _, d := range p.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// Polled returns the devices with a poll entry.
func (p *Profile) Polled() []Device {
	var out []Device
	for _, d := range p.Devices {
		if d.Poll != nil {
			out = append(out, d)
		}
	}
	return out
}

// SerialConfig returns the serial settings of the profile.
func (p *Profile) SerialConfig() *serial.Config {
	return &serial.Config{
		Device:      p.Serial,
		Baud:        p.Baud,
		ReadTimeout: time.Duration(p.ReadTimeout),
	}
}
