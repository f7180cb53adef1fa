// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanward/panelgate/pkg/panelproto"
)

var (
	probeProtocol uint8
	probeTimeout  int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the panel connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the panel connection until timeout.

This command connects to a serial port or WebSocket bridge and waits for any
complete, valid frame in the selected protocol. Invalid bytes are ignored.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the wiring and protocol selection on a new installation.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().Uint8Var(&probeProtocol, "protocol", 0, "Protocol id (overrides config)")
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("protocol") {
		cfg.Panel.Protocol = probeProtocol
	}

	id := panelproto.ID(cfg.Panel.Protocol)
	scanner, err := newFrameScanner(id)
	if err != nil {
		return err
	}

	conn, where, err := OpenConnection(cfg.Panel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("panelgate - Connection Probe\n")
	fmt.Printf("Source: %s\n", where)
	fmt.Printf("Protocol: %d (%s)\n", id, panelproto.NewRegistry(newLogger()).Descriptor(id).Label)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a valid frame...\n\n")

	frameChan := make(chan panelEvent, 1)
	errChan := make(chan error, 1)

	go func() {
		invalidFrames := 0
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				for _, ev := range scanner.Scan(buf[i]) {
					if ev.isError {
						invalidFrames++
						continue
					}
					if ev.frame {
						if invalidFrames > 0 {
							fmt.Printf("(skipped %d invalid frames before sync)\n", invalidFrames)
						}
						frameChan <- ev
						return
					}
				}
			}
		}
	}()

	select {
	case ev := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  %s\n", ev.message)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
