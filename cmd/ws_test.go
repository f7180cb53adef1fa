// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var wsTestDuration int

var wsTestCmd = &cobra.Command{
	Use:   "ws_test",
	Short: "Soak-test the panel link without decoding",
	Long: `Hold the panel connection open for a fixed period without decoding.

This command opens the serial port or WebSocket bridge and sits on it, printing
every chunk of raw bytes as it arrives. No protocol parser is involved, so it
separates link problems from decode problems: if this command stays up and the
monitor does not, the fault is in the byte stream, not the transport.

Exit codes:
  0 - Link stayed up for the full duration
  1 - Link dropped partway through
  2 - Connection error`,
	RunE: runWsTest,
}

func init() {
	rootCmd.AddCommand(wsTestCmd)
	wsTestCmd.Flags().IntVar(&wsTestDuration, "duration", 30, "Soak duration in seconds")
}

func runWsTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	conn, where, err := OpenConnection(cfg.Panel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("panelgate - Link Soak Test\n")
	fmt.Printf("Source: %s\n", where)
	fmt.Printf("Duration: %d seconds\n\n", wsTestDuration)

	readChan := make(chan []byte, 16)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				readChan <- append([]byte(nil), buf[:n]...)
			}
		}
	}()

	started := time.Now()
	deadline := time.NewTimer(time.Duration(wsTestDuration) * time.Second)
	defer deadline.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	var chunks, total int
	for {
		select {
		case data := <-readChan:
			chunks++
			total += len(data)
			fmt.Printf("[%s] %3d bytes: % X\n", stamp(), len(data), data)

		case err := <-errChan:
			fmt.Fprintf(os.Stderr, "\n[%s] Link dropped: %v\n", stamp(), err)
			wsTestSummary(started, chunks, total)
			os.Exit(1)

		case <-heartbeat.C:
			left := time.Duration(wsTestDuration)*time.Second - time.Since(started)
			fmt.Printf("[%s] link up (%.0fs remaining)\n", stamp(), left.Seconds())

		case <-deadline.C:
			wsTestSummary(started, chunks, total)
			return nil
		}
	}
}

func stamp() string {
	return time.Now().Format("15:04:05.000")
}

func wsTestSummary(started time.Time, chunks, total int) {
	elapsed := time.Since(started)
	fmt.Printf("\nLink held for %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Chunks: %d\n", chunks)
	fmt.Printf("  Bytes:  %d (%.1f/s)\n", total, float64(total)/elapsed.Seconds())
}
