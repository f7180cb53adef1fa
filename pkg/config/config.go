// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

// Package config loads and validates the panelgate TOML configuration. File
// values overlay the built-in defaults; anything absent from the file keeps
// its default, so a minimal config names only the protocol and serial port.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// PanelConfig selects the panel protocol and its serial parameters.
type PanelConfig struct {
	Protocol uint8
	Port     string
	Baud     int
	Framing  string

	// Verbose forwards every Advanced BMS packet, including invalid
	// ones, instead of filtering for Device Status content.
	Verbose bool

	// Reply enables the Gent ACK response to each received event.
	Reply bool

	// Poll sends the Advanced BMS node status request at start.
	Poll bool
}

// NimbusConfig sets up the cloud transfer publisher.
type NimbusConfig struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	Username string
}

// Config is the complete gateway configuration.
type Config struct {
	Panel  PanelConfig
	Nimbus NimbusConfig
}

// Default returns the built-in configuration: no protocol selected, Gent-era
// serial defaults and publishing disabled.
func Default() Config {
	return Config{
		Panel: PanelConfig{
			Protocol: uint8(panelproto.ProtocolNone),
			Port:     "/dev/ttyUSB0",
			Baud:     9600,
			Framing:  "8n1",
		},
		Nimbus: NimbusConfig{
			Broker:   "tcp://localhost:1883",
			Topic:    panelproto.DefaultTopic,
			ClientID: "panelgate",
		},
	}
}

// fileConfig maps the config.toml keys.
type fileConfig struct {
	Panel struct {
		Protocol uint8  `toml:"protocol"`
		Port     string `toml:"port"`
		Baud     int    `toml:"baud"`
		Framing  string `toml:"framing"`
		Verbose  bool   `toml:"verbose"`
		Reply    bool   `toml:"reply"`
		Poll     bool   `toml:"poll"`
	} `toml:"panel"`
	Nimbus struct {
		Enabled  bool   `toml:"enabled"`
		Broker   string `toml:"broker"`
		Topic    string `toml:"topic"`
		ClientID string `toml:"client_id"`
		Username string `toml:"username"`
	} `toml:"nimbus"`
}

// Load reads a TOML config file and overlays it on the defaults. Keys not
// present in the file are left at their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("panel", "protocol") {
		cfg.Panel.Protocol = raw.Panel.Protocol
	}
	if meta.IsDefined("panel", "port") {
		cfg.Panel.Port = strings.TrimSpace(raw.Panel.Port)
	}
	if meta.IsDefined("panel", "baud") {
		cfg.Panel.Baud = raw.Panel.Baud
	}
	if meta.IsDefined("panel", "framing") {
		cfg.Panel.Framing = strings.ToLower(strings.TrimSpace(raw.Panel.Framing))
	}
	if meta.IsDefined("panel", "verbose") {
		cfg.Panel.Verbose = raw.Panel.Verbose
	}
	if meta.IsDefined("panel", "reply") {
		cfg.Panel.Reply = raw.Panel.Reply
	}
	if meta.IsDefined("panel", "poll") {
		cfg.Panel.Poll = raw.Panel.Poll
	}

	if meta.IsDefined("nimbus", "enabled") {
		cfg.Nimbus.Enabled = raw.Nimbus.Enabled
	}
	if meta.IsDefined("nimbus", "broker") {
		cfg.Nimbus.Broker = strings.TrimSpace(raw.Nimbus.Broker)
	}
	if meta.IsDefined("nimbus", "topic") {
		cfg.Nimbus.Topic = strings.TrimSpace(raw.Nimbus.Topic)
	}
	if meta.IsDefined("nimbus", "client_id") {
		cfg.Nimbus.ClientID = strings.TrimSpace(raw.Nimbus.ClientID)
	}
	if meta.IsDefined("nimbus", "username") {
		cfg.Nimbus.Username = strings.TrimSpace(raw.Nimbus.Username)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c Config) Validate() error {
	if c.Panel.Protocol >= uint8(panelproto.ProtocolCount) {
		return fmt.Errorf("unknown protocol id %d", c.Panel.Protocol)
	}
	if !ValidBaud(c.Panel.Baud) {
		return fmt.Errorf("unsupported baud rate %d", c.Panel.Baud)
	}
	if _, ok := LookupFraming(c.Panel.Framing); !ok {
		return fmt.Errorf("unsupported framing %q", c.Panel.Framing)
	}
	if c.Nimbus.Enabled {
		if c.Nimbus.Broker == "" {
			return fmt.Errorf("nimbus enabled with no broker")
		}
		if c.Nimbus.Topic == "" {
			return fmt.Errorf("nimbus enabled with no topic")
		}
	}
	return nil
}
