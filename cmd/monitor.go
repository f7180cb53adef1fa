// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lanward/panelgate/pkg/advascii"
	"github.com/lanward/panelgate/pkg/advbms"
	"github.com/lanward/panelgate/pkg/gent"
	"github.com/lanward/panelgate/pkg/panelproto"
)

var (
	monitorProtocol      uint8
	monitorShowAll       bool
	monitorStatsInterval int
	monitorUseTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor live panel traffic with decode statistics",
	Long: `Watch the panel byte stream decode in real time without publishing anything.

Each completed frame is validated and classified:
  - Valid frames, with a short description of their content
  - Checksum and CRC failures
  - Framing errors (lost sync, byte stuffing violations, oversize frames)
  - Malformed frames (bad identity, unknown identifier codes)

By default only errors are displayed. Use --show-all to display valid frames
too. Statistics summaries are shown at a configurable interval.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Uint8Var(&monitorProtocol, "protocol", 0, "Protocol id (overrides config)")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&monitorUseTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// statClass maps a decode error onto the statistics counter it belongs to.
type statClass int

const (
	statNone statClass = iota
	statChecksum
	statCRC
	statShort
	statFormat
	statFraming
)

// panelEvent is one decode outcome produced by a frame scanner.
type panelEvent struct {
	message string
	isError bool
	frame   bool // counts toward total frames
	forward bool // would be forwarded by the gateway
	discard int  // bytes dropped
	class   statClass
}

// frameScanner feeds the protocol decoder one byte and reports any decode
// outcomes. The monitor drives the decoders directly rather than through the
// protocol wrappers so it can observe frames the gateway would discard.
type frameScanner interface {
	Scan(b byte) []panelEvent
}

func newFrameScanner(id panelproto.ID) (frameScanner, error) {
	switch id {
	case panelproto.ProtocolGent:
		return &gentScanner{dec: gent.NewDecoder()}, nil
	case panelproto.ProtocolAdvanced:
		return &advbmsScanner{dec: advbms.NewDecoder()}, nil
	case panelproto.ProtocolAdvancedASCII:
		return &advasciiScanner{dec: advascii.NewDecoder()}, nil
	default:
		return nil, fmt.Errorf("no decoder for protocol id %d", id)
	}
}

type gentScanner struct {
	dec *gent.Decoder
}

func (s *gentScanner) Scan(b byte) []panelEvent {
	frame, err := s.dec.DecodeByte(b)
	if err != nil {
		return []panelEvent{{
			message: err.Error(),
			isError: true,
			frame:   true,
			class:   statChecksum,
		}}
	}
	if frame == nil {
		return nil
	}

	ev := panelEvent{frame: true}
	switch {
	case frame.Event():
		ev.message = fmt.Sprintf("event %02X %02X (%d bytes)", frame.Data[0], frame.Data[1], len(frame.Data))
		ev.forward = true
	case frame.Ack():
		ev.message = "ACK"
	case frame.Nak():
		ev.message = "NAK"
	}
	return []panelEvent{ev}
}

type advbmsScanner struct {
	dec *advbms.Decoder
}

func (s *advbmsScanner) Scan(b byte) []panelEvent {
	pkt, err := s.dec.DecodeByte(b)
	if err != nil {
		ev := panelEvent{
			message: err.Error(),
			isError: true,
			class:   statFraming,
		}
		if pkt != nil {
			ev.frame = true
			ev.discard = len(pkt.Data)
		}
		return []panelEvent{ev}
	}
	if pkt == nil {
		return nil
	}

	if !pkt.Valid() {
		ev := panelEvent{
			message: pkt.Err().Error(),
			isError: true,
			frame:   true,
			discard: len(pkt.Data),
		}
		switch {
		case errors.Is(pkt.Err(), advbms.ErrTooShort):
			ev.class = statShort
		case errors.Is(pkt.Err(), advbms.ErrCRC):
			ev.class = statCRC
		default:
			ev.class = statFormat
		}
		return []panelEvent{ev}
	}

	return []panelEvent{{
		message: describeAdvBMSPacket(pkt),
		frame:   true,
		forward: pkt.OfInterest(),
	}}
}

func describeAdvBMSPacket(pkt *advbms.Packet) string {
	var parts []string
	for _, code := range []byte{
		advbms.CodeAcknowledgement, advbms.CodeDeviceStatus,
		advbms.CodeNodeStatus, advbms.CodeNetworkConfig,
		advbms.CodeZoneText, advbms.CodeAnalogueValue,
		advbms.CodeOutputByBMS,
	} {
		if n := pkt.Count(code); n > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", advbms.IdentifierLabel(code), n))
		}
	}
	return fmt.Sprintf("%s (%d bytes)", strings.Join(parts, ", "), len(pkt.Data))
}

type advasciiScanner struct {
	dec *advascii.Decoder
}

func (s *advasciiScanner) Scan(b byte) []panelEvent {
	recovering := s.dec.Recovering()
	msg, err := s.dec.DecodeByte(b)
	if err != nil {
		ev := panelEvent{
			message: err.Error(),
			isError: true,
			frame:   true,
			class:   statFormat,
		}
		if msg != nil {
			ev.discard = len(msg.Data)
		}
		return []panelEvent{ev}
	}
	if recovering {
		// Swallowed while waiting for a blank line.
		return []panelEvent{{discard: 1}}
	}
	if msg == nil {
		return nil
	}

	first, _, _ := strings.Cut(string(msg.Data), "\r\n")
	return []panelEvent{{
		message: fmt.Sprintf("%q (%d lines, %d bytes)", first, msg.Lines, len(msg.Data)),
		frame:   true,
		forward: true,
	}}
}

// apply folds one decode outcome into the statistics counters.
func (e panelEvent) apply(stats *panelproto.Statistics) {
	if e.frame {
		stats.Frame()
	}
	if e.forward {
		stats.Forwarded()
	}
	if e.discard > 0 {
		stats.Discarded(e.discard)
	}
	switch e.class {
	case statChecksum:
		stats.ChecksumErrors++
	case statCRC:
		stats.CRCErrors++
	case statShort:
		stats.ShortFrames++
	case statFormat:
		stats.FormatErrors++
	case statFraming:
		stats.FramingErrors++
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("protocol") {
		cfg.Panel.Protocol = monitorProtocol
	}

	id := panelproto.ID(cfg.Panel.Protocol)
	scanner, err := newFrameScanner(id)
	if err != nil {
		return err
	}

	conn, where, err := OpenConnection(cfg.Panel)
	if err != nil {
		return err
	}
	defer conn.Close()

	if monitorUseTUI {
		return runMonitorTUI(conn, scanner, where, id)
	}
	return runMonitorText(conn, scanner, where, id)
}

// runMonitorText runs the monitor in plain text mode.
func runMonitorText(conn Connection, scanner frameScanner, where string, id panelproto.ID) error {
	fmt.Printf("panelgate - Protocol Monitor\n")
	fmt.Printf("Source: %s\n", where)
	fmt.Printf("Protocol: %d\n", id)
	fmt.Printf("Statistics interval: %d seconds\n", monitorStatsInterval)
	if monitorShowAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := panelproto.NewStatistics()

	// Synchronization tracking: errors before the first valid frame are
	// leftovers of joining the byte stream mid-frame, not real faults.
	synchronized := false
	invalidBytesBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
	defer statsTicker.Stop()

	serialBuf := make(chan []byte, 10)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			serialBuf <- data
		}
	}()

	for {
		select {
		case data := <-serialBuf:
			for _, b := range data {
				for _, ev := range scanner.Scan(b) {
					if ev.isError && !synchronized {
						invalidBytesBeforeSync++
						continue
					}
					if ev.frame && !ev.isError && !synchronized {
						synchronized = true
						if invalidBytesBeforeSync > 0 {
							fmt.Printf("[SYNC] Synchronized after %d discarded decode attempts\n\n", invalidBytesBeforeSync)
						} else {
							fmt.Printf("[SYNC] Synchronized\n\n")
						}
					}
					ev.apply(stats)
					if ev.message == "" {
						continue
					}
					timestamp := time.Now().Format("15:04:05.000")
					if ev.isError {
						fmt.Printf("[%s] \033[1;31mERROR:\033[0m %s\n", timestamp, ev.message)
					} else if monitorShowAll {
						fmt.Printf("[%s] %s\n", timestamp, ev.message)
					}
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// runMonitorTUI runs the monitor under the terminal UI.
func runMonitorTUI(conn Connection, scanner frameScanner, where string, id panelproto.ID) error {
	m := initialMonitorModel(where, id, monitorShowAll)
	p := tea.NewProgram(m)

	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			for i := 0; i < n; i++ {
				for _, ev := range scanner.Scan(buf[i]) {
					p.Send(panelEventMsg{event: ev})
				}
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
