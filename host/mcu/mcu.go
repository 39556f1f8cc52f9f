// Package mcu is the host client of the bridge firmware.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"l1hal/core"
	"l1hal/host/serial"
	"l1hal/protocol"
)

// Fixed ids of the bootstrap messages, usable before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
)

// DefaultResponseTimeout bounds the wait for a command's response.
const DefaultResponseTimeout = time.Second

var (
	ErrNotConnected = errors.New("mcu: not connected")
	ErrNoDictionary = errors.New("mcu: dictionary not loaded")
)

// MCU is a connection to the bridge firmware. Commands are serialized: each
// call sends one command and waits for its response.
type MCU struct {
	// ResponseTimeout bounds the wait for each response.
	ResponseTimeout time.Duration

	mu             sync.Mutex
	transport      *protocol.HostTransport
	dictionary     *Dictionary
	dictionaryData []byte // decompressed JSON
}

// Dictionary is the parsed firmware data dictionary.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// lookup finds name in a format-to-id table. It returns the id and the number
// of arguments the format declares.
func lookup(table map[string]int, name string) (id int, nargs int, ok bool) {
	for format, id := range table {
		msgName, params, _ := strings.Cut(format, " ")
		if msgName == name {
			return id, len(strings.Fields(params)), true
		}
	}
	return 0, 0, false
}

// CommandID returns the id of command name and its argument count.
func (d *Dictionary) CommandID(name string) (id int, nargs int, ok bool) {
	return lookup(d.Commands, name)
}

// ResponseID returns the id of response name.
func (d *Dictionary) ResponseID(name string) (int, bool) {
	id, _, ok := lookup(d.Responses, name)
	return id, ok
}

// NewMCU returns an unconnected client.
func NewMCU() *MCU {
	return &MCU{ResponseTimeout: DefaultResponseTimeout}
}

// Connect opens device with the default serial settings.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial port and attaches to it.
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	m.Attach(port)
	return nil
}

// Attach runs the client over an already open link.
func (m *MCU) Attach(link io.ReadWriteCloser) *protocol.HostTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transport = protocol.NewHostTransport(link)
	m.transport.SetResponseHandler(func(id uint16, _ *protocol.Decoder) {
		glog.V(2).Infof("mcu: message id %d", id)
	})
	return m.transport
}

// Transport returns the link, nil when not connected.
func (m *MCU) Transport() *protocol.HostTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Close closes the link.
func (m *MCU) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil {
		return ErrNotConnected
	}
	err := m.transport.Close()
	m.transport = nil
	return err
}

// IsConnected reports whether a link is attached.
func (m *MCU) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport != nil
}

// RetrieveDictionary fetches, decompresses and parses the firmware dictionary.
func (m *MCU) RetrieveDictionary() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil {
		return ErrNotConnected
	}

	var compressed bytes.Buffer
	for {
		msg := protocol.AppendVLQUint(nil, identifyID)
		msg = protocol.AppendVLQUint(msg, uint32(compressed.Len()))
		msg = protocol.AppendVLQUint(msg, identifyChunk)

		d, err := m.roundTrip(msg, identifyResponseID)
		if err != nil {
			return fmt.Errorf("identify at offset %d: %w", compressed.Len(), err)
		}
		offset := d.Uint()
		chunk := d.Bytes()
		if err := d.Err(); err != nil {
			return fmt.Errorf("identify_response: %w", err)
		}
		if int(offset) != compressed.Len() {
			return fmt.Errorf("identify_response: offset %d, want %d", offset, compressed.Len())
		}
		if len(chunk) == 0 {
			break
		}
		compressed.Write(chunk)
	}
	glog.V(1).Infof("mcu: dictionary %d bytes compressed", compressed.Len())

	r, err := zlib.NewReader(&compressed)
	if err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}
	m.dictionary = dict
	m.dictionaryData = raw
	glog.V(1).Infof("mcu: dictionary %s, %d commands, %d responses",
		dict.Version, len(dict.Commands), len(dict.Responses))
	return nil
}

// GetDictionary returns the parsed dictionary, nil before RetrieveDictionary.
func (m *MCU) GetDictionary() *Dictionary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionary
}

// GetDictionaryRaw returns the dictionary JSON.
func (m *MCU) GetDictionaryRaw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionaryData
}

// PrintDictionary writes a summary of the dictionary to w.
func (m *MCU) PrintDictionary(w io.Writer) {
	dict := m.GetDictionary()
	if dict == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintf(w, "Version: %s\n", dict.Version)
	fmt.Fprintf(w, "Build: %s\n", dict.BuildVersions)
	fmt.Fprintln(w, "Config:")
	keys := make([]string, 0, len(dict.Config))
	for k := range dict.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, dict.Config[k])
	}
	printTable(w, "Commands", dict.Commands)
	printTable(w, "Responses", dict.Responses)
}

func printTable(w io.Writer, title string, table map[string]int) {
	formats := make([]string, 0, len(table))
	for f := range table {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return table[formats[i]] < table[formats[j]] })

	fmt.Fprintf(w, "%s (%d):\n", title, len(table))
	for _, f := range formats {
		fmt.Fprintf(w, "  [%d] %s\n", table[f], f)
	}
}

// Call sends command name with args (uint32-convertible integers or byte
// slices, in format order) and returns the arguments of response resp.
func (m *MCU) Call(name, resp string, args ...any) (*protocol.Decoder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transport == nil {
		return nil, ErrNotConnected
	}
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	id, nargs, ok := m.dictionary.CommandID(name)
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	if nargs != len(args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", name, nargs, len(args))
	}
	respID, ok := m.dictionary.ResponseID(resp)
	if !ok {
		return nil, fmt.Errorf("unknown response %q", resp)
	}

	msg := protocol.AppendVLQUint(nil, uint32(id))
	for i, a := range args {
		switch v := a.(type) {
		case uint8:
			msg = protocol.AppendVLQUint(msg, uint32(v))
		case uint32:
			msg = protocol.AppendVLQUint(msg, v)
		case int:
			msg = protocol.AppendVLQInt(msg, int32(v))
		case []byte:
			msg = protocol.AppendVLQBytes(msg, v)
		default:
			return nil, fmt.Errorf("%s argument %d: unsupported type %T", name, i, a)
		}
	}
	return m.roundTrip(msg, respID)
}

// roundTrip sends msg and waits for a message with id respID, skipping any
// other message. Caller holds m.mu.
func (m *MCU) roundTrip(msg []byte, respID int) (*protocol.Decoder, error) {
	if err := m.transport.SendCommand(msg); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.ResponseTimeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("no response id %d after %v", respID, m.ResponseTimeout)
		}
		resp, err := m.transport.ReceiveResponse(left)
		if err != nil {
			return nil, err
		}
		d := protocol.NewDecoder(resp)
		if id := d.Uint(); int(id) == respID && d.Err() == nil {
			return d, nil
		}
		glog.V(1).Infof("mcu: skipping message % x", resp)
	}
}

// statusError converts a wire status into an error with context.
func statusError(op string, bus, addr uint8, status uint8) error {
	if err := core.CodeError(status); err != nil {
		return fmt.Errorf("%s bus %d addr 0x%02x: %w", op, bus, addr, err)
	}
	return nil
}

// readStatus decodes "bus=%c status=%c" and checks the bus.
func readStatus(d *protocol.Decoder, bus uint8) (uint8, error) {
	gotBus := d.Byte()
	status := d.Byte()
	if err := d.Err(); err != nil {
		return 0, err
	}
	if gotBus != bus {
		return 0, fmt.Errorf("response for bus %d, want %d", gotBus, bus)
	}
	return status, nil
}

// I2CWrite writes data to addr on bus.
func (m *MCU) I2CWrite(bus, addr uint8, data []byte) error {
	d, err := m.Call("i2c_write", "i2c_status", bus, addr, data)
	if err != nil {
		return err
	}
	status, err := readStatus(d, bus)
	if err != nil {
		return err
	}
	return statusError("write", bus, addr, status)
}

// I2CRead reads n bytes from addr on bus, first writing reg with a repeated
// start when reg is not empty.
func (m *MCU) I2CRead(bus, addr uint8, reg []byte, n int) ([]byte, error) {
	if n <= 0 || n > core.MaxI2CRead {
		return nil, fmt.Errorf("read of %d bytes: %w", n, core.ErrReadLength)
	}
	d, err := m.Call("i2c_read", "i2c_read_response", bus, addr, reg, uint8(n))
	if err != nil {
		return nil, err
	}
	status, err := readStatus(d, bus)
	if err != nil {
		return nil, err
	}
	data := bytes.Clone(d.Bytes())
	if err := d.Err(); err != nil {
		return nil, err
	}
	if err := statusError("read", bus, addr, status); err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("read %d bytes, want %d", len(data), n)
	}
	return data, nil
}

// I2CReset reinitializes the controller of bus.
func (m *MCU) I2CReset(bus uint8) error {
	d, err := m.Call("i2c_reset", "i2c_status", bus)
	if err != nil {
		return err
	}
	status, err := readStatus(d, bus)
	if err != nil {
		return err
	}
	if err := core.CodeError(status); err != nil {
		return fmt.Errorf("reset bus %d: %w", bus, err)
	}
	return nil
}

// I2CTrace returns the most recent bus events of bus, oldest first.
func (m *MCU) I2CTrace(bus uint8) ([]core.TraceEntry, error) {
	d, err := m.Call("i2c_trace", "i2c_trace_response", bus)
	if err != nil {
		return nil, err
	}
	d.Byte()
	events := d.Bytes()
	if err := d.Err(); err != nil {
		return nil, err
	}

	out := make([]core.TraceEntry, 0, len(events)/2)
	for i := 0; i+1 < len(events); i += 2 {
		out = append(out, core.TraceEntry{
			Seq:   uint32(len(out) + 1),
			Event: core.Event(events[i]),
			Addr:  events[i+1],
		})
	}
	return out, nil
}
