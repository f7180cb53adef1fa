// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lanward/panelgate/pkg/config"
)

var (
	// Config file flag
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "panelgate",
	Short: "Fire panel protocol gateway",
	Long: `Panelgate - A gateway bridging fire alarm panel serial protocols to the
Nimbus cloud backend.

Decodes the panel's native protocol (Gent Vigilon Universal, Advanced MXPro
BMS or Advanced MXPro ASCII), validates each frame and forwards events as
Base64-encoded transfer records over MQTT.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

The WebSocket mode talks to a serial-over-WebSocket bridge, useful for
running against a remote panel. For WebSocket authentication, the password
is read from the PANELGATE_PASSWORD environment variable, or prompted
interactively if not set. The --password flag is intentionally not provided
to avoid leaking credentials in shell history.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (TOML)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// newLogger builds the console logger shared by all commands.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

// loadConfig loads the config file (or the defaults when none is given) and
// applies any connection flags over it. Flags win over file values.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	if cmd.Flags().Changed("port") {
		cfg.Panel.Port = portName
	}
	if cmd.Flags().Changed("baud") {
		cfg.Panel.Baud = baudRate
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
