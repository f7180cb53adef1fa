// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

// Package nimbus publishes encoded transfer records to the Nimbus cloud
// backend over MQTT.
package nimbus

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds connect and publish waits.
const DefaultTimeout = 10 * time.Second

// Options configures the Nimbus connection.
type Options struct {
	// Broker is the MQTT broker URL, e.g. tcp://host:1883 or
	// ssl://host:8883.
	Broker   string
	ClientID string
	Username string
	Password string

	// Timeout bounds connect and publish waits. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	Log zerolog.Logger
}

// Client is a connected Nimbus publisher. It satisfies the transfer
// encoder's Publisher interface.
type Client struct {
	mqtt    mqtt.Client
	timeout time.Duration
	log     zerolog.Logger
}

// Dial connects to the Nimbus broker. The underlying connection reconnects
// automatically after transient drops; records published while disconnected
// are lost, which the transfer pipeline tolerates.
func Dial(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetConnectTimeout(timeout)
	co.SetAutoReconnect(true)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}

	c := &Client{
		mqtt:    mqtt.NewClient(co),
		timeout: timeout,
		log:     opts.Log,
	}

	token := c.mqtt.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("nimbus: connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("nimbus: connect to %s: %w", opts.Broker, err)
	}

	c.log.Info().Str("broker", opts.Broker).Str("client_id", opts.ClientID).Msg("Nimbus connected")
	return c, nil
}

// Publish sends one encoded transfer record. Delivered at least once; the
// panel event stream carries periodic state anyway, so a duplicate is
// harmless.
func (c *Client) Publish(topic, body string) error {
	token := c.mqtt.Publish(topic, 1, false, body)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("nimbus: publish to %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker, allowing a short drain for in-flight
// messages.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
	c.log.Info().Msg("Nimbus disconnected")
}
