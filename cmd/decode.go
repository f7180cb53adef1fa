// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lanward/panelgate/pkg/advascii"
	"github.com/lanward/panelgate/pkg/advbms"
	"github.com/lanward/panelgate/pkg/gent"
	"github.com/lanward/panelgate/pkg/panelproto"
)

var decodeProtocol uint8

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Replay captured panel bytes through a protocol decoder",
	Long: `Decode a hex dump of captured panel bytes offline.

Reads hex digits from the given file (or stdin), ignoring whitespace, runs
them through the selected protocol decoder and prints each frame with its
validation result. Useful for post-mortem analysis of a capture taken with a
logic analyzer or a bridge trace.

Example:
  panelgate decode --protocol 5 capture.hex`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().Uint8Var(&decodeProtocol, "protocol", uint8(panelproto.ProtocolGent), "Protocol id to decode as")
}

func runDecode(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, string(raw))

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return fmt.Errorf("invalid hex input: %v", err)
	}

	switch panelproto.ID(decodeProtocol) {
	case panelproto.ProtocolGent:
		return decodeGent(data)
	case panelproto.ProtocolAdvanced:
		return decodeAdvBMS(data)
	case panelproto.ProtocolAdvancedASCII:
		return decodeAdvASCII(data)
	default:
		return fmt.Errorf("no decoder for protocol id %d", decodeProtocol)
	}
}

func decodeGent(data []byte) error {
	dec := gent.NewDecoder()
	frames := 0

	for _, b := range data {
		frame, err := dec.DecodeByte(b)
		if err != nil {
			fmt.Printf("[ERROR] %v\n\n", err)
			continue
		}
		if frame == nil {
			continue
		}

		frames++
		switch {
		case frame.Event():
			fmt.Printf("Frame %d: event %02X %02X (%d bytes)\n", frames, frame.Data[0], frame.Data[1], len(frame.Data))
		case frame.Ack():
			fmt.Printf("Frame %d: ACK\n", frames)
		case frame.Nak():
			fmt.Printf("Frame %d: NAK\n", frames)
		}
		fmt.Print(hex.Dump(frame.Data))
		fmt.Println()
	}

	fmt.Printf("%d frames decoded\n", frames)
	return nil
}

func decodeAdvBMS(data []byte) error {
	dec := advbms.NewDecoder()
	packets := 0

	for _, b := range data {
		pkt, err := dec.DecodeByte(b)
		if err != nil {
			fmt.Printf("[FRAMING ERROR] %v\n\n", err)
			continue
		}
		if pkt == nil {
			continue
		}

		packets++
		if pkt.Valid() {
			fmt.Printf("Packet %d: valid (%d bytes)\n", packets, len(pkt.Data))
			for _, code := range []byte{
				advbms.CodeAcknowledgement, advbms.CodeDeviceStatus,
				advbms.CodeNodeStatus, advbms.CodeNetworkConfig,
				advbms.CodeZoneText, advbms.CodeAnalogueValue,
				advbms.CodeOutputByBMS,
			} {
				if n := pkt.Count(code); n > 0 {
					fmt.Printf("  %s: %d\n", advbms.IdentifierLabel(code), n)
				}
			}
		} else {
			fmt.Printf("Packet %d: INVALID: %v (%d bytes)\n", packets, pkt.Err(), len(pkt.Data))
		}
		fmt.Print(hex.Dump(pkt.Data))
		fmt.Println()
	}

	fmt.Printf("%d packets decoded\n", packets)
	return nil
}

func decodeAdvASCII(data []byte) error {
	dec := advascii.NewDecoder()
	messages := 0

	for _, b := range data {
		msg, err := dec.DecodeByte(b)
		if err != nil {
			fmt.Printf("[ERROR] %v\n\n", err)
			continue
		}
		if msg == nil {
			continue
		}

		messages++
		fmt.Printf("Message %d: %d lines, %d bytes\n", messages, msg.Lines, len(msg.Data))
		for _, line := range strings.Split(strings.TrimRight(string(msg.Data), "\r\n"), "\r\n") {
			fmt.Printf("  | %s\n", line)
		}
		fmt.Println()
	}

	fmt.Printf("%d messages decoded\n", messages)
	return nil
}
