package telemetry

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// DefaultPublishTimeout bounds the wait for the broker to take a message.
const DefaultPublishTimeout = 5 * time.Second

// MQTT publishes to a broker. Topics are prefixed with the path of the broker
// URL.
type MQTT struct {
	Timeout time.Duration

	client      paho.Client
	topicPrefix string
}

// ClientOptionsFromURL converts a broker URL into client options and a topic
// prefix. "mqtt://" means plain TCP; user info and a client-id query parameter
// are honoured.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("broker url %q has no host", brokerURL)
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if id := u.Query().Get("client-id"); id != "" {
		opts.SetClientID(id)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// DialMQTT connects to the broker at brokerURL.
func DialMQTT(brokerURL string) (*MQTT, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt: connection lost: %v", err)
	})

	m := &MQTT{
		Timeout:     DefaultPublishTimeout,
		client:      paho.NewClient(opts),
		topicPrefix: prefix,
	}
	token := m.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", brokerURL, err)
	}
	glog.Infof("mqtt: connected to %s", brokerURL)
	return m, nil
}

// Publish sends payload to topic with QoS 0.
func (m *MQTT) Publish(topic string, payload []byte) error {
	token := m.client.Publish(m.topicPrefix+topic, 0, false, payload)
	if !token.WaitTimeout(m.Timeout) {
		return fmt.Errorf("publish %s: timed out after %v", topic, m.Timeout)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
