package core

import (
	"bytes"
	"slices"
	"sync"

	"l1hal/protocol"
	"l1hal/tinycompress"
)

// Dictionary is the data dictionary sent to the host: the firmware version,
// configuration constants, enumerations and every message format with its id.
// The host fetches it compressed, in identify chunks.
type Dictionary struct {
	mu            sync.Mutex
	registry      *CommandRegistry
	constants     map[string]string
	enumerations  map[string][]string
	version       string
	buildVersions string
	cached        []byte // compressed, nil until built
}

// NewDictionary returns a dictionary describing the messages of reg.
func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		registry:      reg,
		constants:     make(map[string]string),
		enumerations:  make(map[string][]string),
		version:       protocol.Version,
		buildVersions: "go-tinygo",
	}
}

// AddConstant adds a configuration constant. Strings, integers and Hertz
// values are accepted.
func (d *Dictionary) AddConstant(name string, value any) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = itoa(v)
	case uint8:
		s = utoa(uint32(v))
	case uint32:
		s = utoa(v)
	case Hertz:
		s = utoa(uint32(v))
	default:
		s = "?"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = s
	d.cached = nil
}

// AddEnumeration adds a named list; each non-empty value maps to its index.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = slices.Clone(values)
	d.cached = nil
}

// SetVersion sets the firmware version string.
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

// SetBuildVersions sets the toolchain description.
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// Compressed returns the zlib-compressed dictionary, building it on first use.
// Call it once every message is registered.
func (d *Dictionary) Compressed() []byte {
	// registry first: never hold both locks
	commands, responses := d.registry.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached != nil {
		return d.cached
	}

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	if _, err := w.Write(d.appendJSON(nil, commands, responses)); err != nil {
		DebugPrintln("[DICT] compress: " + err.Error())
		return nil
	}
	if err := w.Close(); err != nil {
		DebugPrintln("[DICT] compress: " + err.Error())
		return nil
	}
	d.cached = buf.Bytes()
	DebugPrintln("[DICT] built: " + itoa(len(d.cached)) + " bytes")
	return d.cached
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	commands, responses := d.registry.GetCommandsAndResponses()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appendJSON(nil, commands, responses)
}

// GetChunk returns a copy of up to count bytes of the compressed dictionary
// starting at offset, empty past the end.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Compressed()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return bytes.Clone(data[offset:end])
}

func (d *Dictionary) appendJSON(b []byte, commands, responses map[string]int) []byte {
	b = append(b, `{"version":`...)
	b = appendQuoted(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = appendQuoted(b, d.buildVersions)

	b = append(b, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendQuoted(b, name)
		b = append(b, ':')
		b = appendQuoted(b, d.constants[name])
	}

	b = append(b, `},"commands":`...)
	b = appendIDs(b, commands)
	b = append(b, `,"responses":`...)
	b = appendIDs(b, responses)

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		for i, name := range sortedKeys(d.enumerations) {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendQuoted(b, name)
			b = append(b, ":{"...)
			first := true
			for idx, v := range d.enumerations[name] {
				if v == "" {
					continue
				}
				if !first {
					b = append(b, ',')
				}
				b = appendQuoted(b, v)
				b = append(b, ':')
				b = append(b, itoa(idx)...)
				first = false
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

// appendIDs writes a format-to-id object ordered by id.
func appendIDs(b []byte, ids map[string]int) []byte {
	formats := make([]string, 0, len(ids))
	for f := range ids {
		formats = append(formats, f)
	}
	slices.SortFunc(formats, func(x, y string) int { return ids[x] - ids[y] })

	b = append(b, '{')
	for i, f := range formats {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendQuoted(b, f)
		b = append(b, ':')
		b = append(b, itoa(ids[f])...)
	}
	return append(b, '}')
}

func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b = append(b, '\\', c)
		case c < 0x20:
			b = append(b, `\u00`...)
			b = append(b, hexDigits[c>>4], hexDigits[c&0xF])
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
