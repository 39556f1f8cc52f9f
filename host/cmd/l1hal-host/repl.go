package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"l1hal/host/config"
	"l1hal/host/mcu"
	"l1hal/host/telemetry"
)

var errQuit = errors.New("quit")

type repl struct {
	mcu     *mcu.MCU
	profile *config.Profile
	out     io.Writer
}

func (r *repl) run(in io.Reader) error {
	fmt.Fprintln(r.out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		err := r.execute(scanner.Text())
		if err == errQuit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (r *repl) execute(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		r.printHelp()
		return nil
	case "dict":
		r.mcu.PrintDictionary(r.out)
		return nil
	case "raw":
		fmt.Fprintf(r.out, "%s\n", r.mcu.GetDictionaryRaw())
		return nil
	case "devices":
		for _, d := range r.profile.Devices {
			fmt.Fprintf(r.out, "  %-12s bus %d addr 0x%02x", d.Name, d.Bus, d.Addr)
			if d.Poll != nil {
				fmt.Fprintf(r.out, " poll %d bytes", d.Poll.Len)
			}
			fmt.Fprintln(r.out)
		}
		return nil
	case "poll":
		p := telemetry.NewPoller(r.mcu, printPublisher{r.out}, r.profile)
		if len(p.Devices) == 0 {
			return errors.New("no device in the profile has a poll entry")
		}
		p.PollOnce()
		return nil
	case "write":
		return r.write(args)
	case "read":
		return r.read(args)
	case "reset":
		bus, err := parseByte(arg(args, 0), "bus")
		if err != nil {
			return err
		}
		if err := r.mcu.I2CReset(bus); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "bus %d reset\n", bus)
		return nil
	case "resync":
		tr := r.mcu.Transport()
		if tr == nil {
			return errors.New("not connected")
		}
		tr.Reset()
		fmt.Fprintln(r.out, "link resynced")
		return nil
	case "trace":
		bus, err := parseByte(arg(args, 0), "bus")
		if err != nil {
			return err
		}
		events, err := r.mcu.I2CTrace(bus)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Fprintf(r.out, "  #%d %v addr=0x%02x\n", e.Seq, e.Event, e.Addr)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q (type 'help')", cmd)
}

// target resolves "<device>" or "<bus> <addr>" and returns the remaining
// arguments.
func (r *repl) target(args []string) (bus, addr uint8, rest []string, err error) {
	if len(args) == 0 {
		return 0, 0, nil, errors.New("missing target")
	}
	if d, ok := r.profile.Lookup(args[0]); ok {
		return d.Bus, d.Addr, args[1:], nil
	}
	if bus, err = parseByte(args[0], "bus"); err != nil {
		return 0, 0, nil, err
	}
	if addr, err = parseByte(arg(args, 1), "address"); err != nil {
		return 0, 0, nil, err
	}
	return bus, addr, args[2:], nil
}

// write <target> <hex bytes...>
func (r *repl) write(args []string) error {
	bus, addr, rest, err := r.target(args)
	if err != nil {
		return err
	}
	data, err := parseHex(rest)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("nothing to write")
	}
	if err := r.mcu.I2CWrite(bus, addr, data); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "wrote %d bytes\n", len(data))
	return nil
}

// read <target> <count> [hex register bytes...]
func (r *repl) read(args []string) error {
	bus, addr, rest, err := r.target(args)
	if err != nil {
		return err
	}
	n, err := parseByte(arg(rest, 0), "count")
	if err != nil {
		return err
	}
	var reg []byte
	if len(rest) > 1 {
		if reg, err = parseHex(rest[1:]); err != nil {
			return err
		}
	}
	data, err := r.mcu.I2CRead(bus, addr, reg, int(n))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "% x\n", data)
	return nil
}

func (r *repl) printHelp() {
	fmt.Fprint(r.out, `Available commands:
  write <target> <bytes...>         Write hex bytes
  read <target> <n> [reg bytes...]  Read n bytes, after writing reg with a repeated start
  reset <bus>                       Reinitialize a bus controller
  trace <bus>                       Show the recent bus events
  resync                            Drop queued replies and re-learn the frame sequence
  devices                           List the profile's named devices
  poll                              Read every polled device once
  dict                              Print the dictionary summary
  raw                               Print the dictionary JSON
  help                              Show this help
  quit                              Exit
<target> is a device name or "<bus> <addr>".
`)
}

// printPublisher prints readings instead of sending them to a broker.
type printPublisher struct{ w io.Writer }

func (p printPublisher) Publish(topic string, payload []byte) error {
	_, err := fmt.Fprintf(p.w, "%s %s\n", topic, payload)
	return err
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseByte(s, what string) (uint8, error) {
	if s == "" {
		return 0, fmt.Errorf("missing %s", what)
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", what, s)
	}
	return uint8(v), nil
}

// parseHex accepts "0x1f", "1f" or runs like "1f2e3d".
func parseHex(args []string) ([]byte, error) {
	var out []byte
	for _, a := range args {
		a = strings.TrimPrefix(strings.ToLower(a), "0x")
		if len(a)%2 == 1 {
			a = "0" + a
		}
		b, err := hex.DecodeString(a)
		if err != nil {
			return nil, fmt.Errorf("bad hex %q", a)
		}
		out = append(out, b...)
	}
	return out, nil
}
