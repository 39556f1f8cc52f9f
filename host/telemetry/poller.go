// Package telemetry reads configured I2C devices through the bridge on an
// interval and publishes what it reads.
package telemetry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"l1hal/core"
	"l1hal/host/config"
)

// Reader performs bridge reads. *mcu.MCU implements it.
type Reader interface {
	I2CRead(bus, addr uint8, reg []byte, n int) ([]byte, error)
}

// Publisher delivers a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Reading is the JSON payload published per device read.
type Reading struct {
	Device string    `json:"device"`
	Bus    uint8     `json:"bus"`
	Addr   uint8     `json:"addr"`
	Time   time.Time `json:"time"`
	Data   string    `json:"data,omitempty"` // hex
	Status uint8     `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Poller reads each polled device once per interval. Each device publishes
// to a topic named after it.
type Poller struct {
	Reader    Reader
	Publisher Publisher
	Devices   []config.Device
	Interval  time.Duration

	now func() time.Time
}

// NewPoller returns a poller for the devices of profile that carry a poll
// entry.
func NewPoller(r Reader, pub Publisher, profile *config.Profile) *Poller {
	return &Poller{
		Reader:    r,
		Publisher: pub,
		Devices:   profile.Polled(),
		Interval:  time.Duration(profile.PollInterval),
		now:       time.Now,
	}
}

// Run polls until ctx is done. A failed read is published with its status; a
// failed publish is logged and polling goes on.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		p.PollOnce()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce reads every device once and publishes the results.
func (p *Poller) PollOnce() {
	for _, d := range p.Devices {
		r := p.read(d)
		payload, err := json.Marshal(r)
		if err != nil {
			glog.Errorf("telemetry: %s: %v", d.Name, err)
			continue
		}
		if err := p.Publisher.Publish(d.Name, payload); err != nil {
			glog.Warningf("telemetry: publish %s: %v", d.Name, err)
		}
	}
}

func (p *Poller) read(d config.Device) Reading {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	r := Reading{Device: d.Name, Bus: d.Bus, Addr: d.Addr}
	data, err := p.Reader.I2CRead(d.Bus, d.Addr, d.Poll.Reg, d.Poll.Len)
	r.Time = now().UTC()
	if err != nil {
		r.Status = core.ErrorCode(err)
		r.Error = err.Error()
		glog.V(1).Infof("telemetry: %s: %v", d.Name, err)
		return r
	}
	r.Data = hex.EncodeToString(data)
	return r
}
