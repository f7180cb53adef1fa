// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// PanelLine adapts a Connection to the protocol Line interface and pumps its
// bytes into a channel for the gateway loop. Open dials the connection and
// starts the pump; Close tears both down. Protocols open and close the line
// as the registry starts and stops them, so the same line survives protocol
// switches.
type PanelLine struct {
	dial func() (Connection, string, error)
	log  zerolog.Logger

	mu   sync.Mutex
	conn Connection
	done chan struct{}

	rx chan byte
}

// NewPanelLine creates a line that dials with the given function on every
// Open.
func NewPanelLine(dial func() (Connection, string, error), log zerolog.Logger) *PanelLine {
	return &PanelLine{
		dial: dial,
		log:  log,
		rx:   make(chan byte, 4096),
	}
}

// Bytes returns the incoming panel byte stream. The channel is shared across
// reopens.
func (l *PanelLine) Bytes() <-chan byte {
	return l.rx
}

// Open dials the connection and starts pumping received bytes.
func (l *PanelLine) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return fmt.Errorf("line already open")
	}

	conn, info, err := l.dial()
	if err != nil {
		return err
	}
	l.log.Info().Str("connection", info).Msg("Panel line open")

	l.conn = conn
	l.done = make(chan struct{})
	go l.pump(conn, l.done)
	return nil
}

// Close stops the pump and closes the connection. Safe to call when already
// closed.
func (l *PanelLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}

	close(l.done)
	err := l.conn.Close()
	l.conn = nil
	l.log.Info().Msg("Panel line closed")
	return err
}

// Write sends reply bytes to the panel.
func (l *PanelLine) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return 0, fmt.Errorf("line not open")
	}
	return l.conn.Write(p)
}

// pump moves connection bytes into the rx channel until the connection
// fails or the line is closed.
func (l *PanelLine) pump(conn Connection, done chan struct{}) {
	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-done:
				// Closed by us.
			default:
				l.log.Warn().Err(err).Msg("Panel read failed")
			}
			return
		}

		for i := 0; i < n; i++ {
			select {
			case l.rx <- buf[i]:
			case <-done:
				return
			}
		}
	}
}
