// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanward/panelgate/pkg/advbms"
)

var (
	pollTimeout int
	pollCount   int
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Test an Advanced BMS link by polling for node status",
	Long: `Send node status requests to an Advanced MXPro panel and wait for replies.

The BMS interface card answers a node status request with a status packet, so
a reply proves the panel is connected with the BMS protocol selected and the
serial settings right.

Exit codes:
  0 - All polls answered
  1 - One or more polls timed out
  2 - Connection error`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().IntVar(&pollTimeout, "timeout", 5, "Timeout in seconds for each poll")
	pollCmd.Flags().IntVar(&pollCount, "count", 3, "Number of polls to send")
}

func runPoll(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("panelgate - Node Status Poll\n")
	fmt.Printf("Source: %s\n", where)
	fmt.Printf("Timeout: %d seconds per poll\n", pollTimeout)
	fmt.Printf("Count: %d polls\n\n", pollCount)

	decoder := advbms.NewDecoder()
	successCount := 0
	failCount := 0

	for i := 1; i <= pollCount; i++ {
		fmt.Printf("Poll %d/%d: ", i, pollCount)

		startTime := time.Now()
		if _, err := conn.Write(advbms.RequestNodeStatus); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		responseChan := make(chan *advbms.Packet, 1)
		errChan := make(chan error, 1)

		go func() {
			buf := make([]byte, 128)
			for {
				n, err := conn.Read(buf)
				if err != nil {
					errChan <- err
					return
				}

				for j := 0; j < n; j++ {
					pkt, decodeErr := decoder.DecodeByte(buf[j])
					if decodeErr != nil {
						// Ignore framing errors while waiting
						continue
					}
					if pkt != nil && pkt.Valid() && pkt.Count(advbms.CodeNodeStatus) > 0 {
						responseChan <- pkt
						return
					}
					// Ignore other traffic (device status, zone text)
				}
			}
		}()

		select {
		case pkt := <-responseChan:
			rtt := time.Since(startTime)
			fmt.Printf("node status received, %d bytes, rtt=%v\n", len(pkt.Data), rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount++

		case <-time.After(time.Duration(pollTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pollTimeout)
			failCount++
		}

		// Small delay between polls
		if i < pollCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Poll statistics ---\n")
	fmt.Printf("%d polls sent, %d responses received, %.0f%% loss\n",
		pollCount, successCount, float64(failCount)/float64(pollCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
