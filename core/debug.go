package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceRingSize is the number of bus events kept per controller for post-mortem
const TraceRingSize = 32

// TraceEntry is one handled bus event
type TraceEntry struct {
	Seq   uint32 // Running event count on this controller
	Event Event
	Addr  uint8
}

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Async debug output channel, safe to feed from interrupt context
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, semihosting, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message without blocking; the message is dropped
// when the channel is full or async output was never started
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// traceRing keeps the last TraceRingSize events handled by a controller
type traceRing struct {
	entries [TraceRingSize]TraceEntry
	head    uint8
	count   uint32
}

func (r *traceRing) record(evt Event, addr uint8) {
	r.count++
	r.entries[r.head] = TraceEntry{Seq: r.count, Event: evt, Addr: addr}
	r.head = (r.head + 1) % TraceRingSize
}

// snapshot returns the recorded entries, oldest first
func (r *traceRing) snapshot() []TraceEntry {
	n := r.count
	if n > TraceRingSize {
		n = TraceRingSize
	}
	out := make([]TraceEntry, 0, n)
	start := (int(r.head) + TraceRingSize - int(n)) % TraceRingSize
	for i := 0; i < int(n); i++ {
		out = append(out, r.entries[(start+i)%TraceRingSize])
	}
	return out
}

func (r *traceRing) clear() {
	*r = traceRing{}
}

// dumpTrace prints entries outside the interrupt mask; the writer may block.
func dumpTrace(name string, entries []TraceEntry) {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[I2C] === " + name + " trace ===")
	for _, e := range entries {
		debugPrintln("[I2C] #" + utoa(e.Seq) + " " + e.Event.String() + " addr=" + hex8(e.Addr))
	}
	debugPrintln("[I2C] === end trace ===")
}
