// Command l1hal-host drives the I2C bridge firmware from a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"

	"l1hal/core"
	"l1hal/host/config"
	"l1hal/host/mcu"
	"l1hal/host/telemetry"
)

var (
	device     = flag.String("device", "", "Serial device path (overrides the profile)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides the profile; ignored for USB CDC)")
	configPath = flag.String("config", "", "JSON host profile")
	simulate   = flag.Bool("sim", false, "Run against an in-process simulated board")
	broker     = flag.String("mqtt", "", "MQTT broker URL for polled readings (overrides the profile)")
)

func main() {
	flag.Parse()

	err := func() error {
		profile, err := loadProfile()
		if err != nil {
			return err
		}
		return run(profile, *simulate, os.Stdin, os.Stdout)
	}()
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run connects, starts the optional MQTT poller and serves the REPL until in
// is exhausted or the user quits. Everything it opens is closed on return.
func run(profile *config.Profile, simulate bool, in io.Reader, out io.Writer) error {
	m := mcu.NewMCU()
	if simulate {
		sim, err := newSimBoard()
		if err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
		defer sim.Close()
		m.Attach(sim.Link())
		fmt.Fprintln(out, "Connected to simulated board")
	} else {
		cfg := profile.SerialConfig()
		fmt.Fprintf(out, "Connecting to %s...\n", cfg.Device)
		if err := m.ConnectWithConfig(cfg); err != nil {
			return err
		}
	}
	defer m.Close()
	if tr := m.Transport(); tr != nil {
		tr.AckTimeout = time.Duration(profile.AckTimeout)
		tr.Retries = profile.Retries
	}

	if err := m.RetrieveDictionary(); err != nil {
		return fmt.Errorf("retrieve dictionary: %w", err)
	}
	m.PrintDictionary(out)

	if profile.MQTT != "" && len(profile.Polled()) > 0 {
		pub, err := telemetry.DialMQTT(profile.MQTT)
		if err != nil {
			return err
		}
		defer pub.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go telemetry.NewPoller(m, pub, profile).Run(ctx)
		fmt.Fprintf(out, "Publishing %d polled devices to %s\n", len(profile.Polled()), profile.MQTT)
	}

	r := &repl{mcu: m, profile: profile, out: out}
	return r.run(in)
}

func loadProfile() (*config.Profile, error) {
	profile := config.Default()
	if *configPath != "" {
		p, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		profile = p
	}
	if *device != "" {
		profile.Serial = *device
	}
	if *baud != 0 {
		profile.Baud = *baud
	}
	if *broker != "" {
		profile.MQTT = *broker
	}
	return profile, profile.Validate()
}

// newSimBoard returns a simulator with an EEPROM-like device at 0x50 on each
// bus.
func newSimBoard() (*mcu.Simulator, error) {
	sim, err := mcu.NewSimulator(2)
	if err != nil {
		return nil, err
	}
	for _, bus := range sim.Buses {
		bus.Attach(0x50, core.NewSimRegisterDevice(256))
	}
	glog.V(1).Info("simulator: 2 buses, device 0x50 on each")
	return sim, nil
}
