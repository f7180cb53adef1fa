// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package gent

import (
	"github.com/rs/zerolog"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// Every Gent message requires one of two fixed responses, corresponding to
// ACK or NAK. Each comprises two data bytes plus a 16-bit checksum.
var (
	AckResponse = []byte{0x00, asciiACK, 0x00, asciiACK}
	NakResponse = []byte{0x00, asciiNAK, 0x00, asciiNAK}
)

// Config carries the collaborators and settings for a Gent protocol
// instance.
type Config struct {
	Line    panelproto.Line
	Forward panelproto.ForwardFunc
	Stats   *panelproto.Statistics
	Log     zerolog.Logger

	// Serial settings, reported at start for the console.
	Baud    int
	Framing string

	// Reply enables the fixed ACK response to each received event frame.
	Reply bool
}

// Protocol is the Gent Vigilon Universal protocol instance.
type Protocol struct {
	cfg Config
	dec *Decoder
}

// New creates a Gent protocol instance.
func New(cfg Config) *Protocol {
	if cfg.Forward == nil {
		cfg.Forward = func([]byte) {}
	}
	if cfg.Stats == nil {
		cfg.Stats = panelproto.NewStatistics()
	}
	return &Protocol{cfg: cfg, dec: NewDecoder()}
}

// Start opens the panel interface.
func (p *Protocol) Start() error {
	p.cfg.Log.Info().Int("baud", p.cfg.Baud).Str("framing", p.cfg.Framing).Msg("Gent serial settings")
	if p.cfg.Line == nil {
		return nil
	}
	return p.cfg.Line.Open()
}

// Stop discards any partial frame and closes the panel interface.
func (p *Protocol) Stop() {
	p.dec.Reset()
	if p.cfg.Line != nil {
		p.cfg.Line.Close()
	}
}

// Rx processes one incoming panel byte. Validated event frames are forwarded
// and acknowledged; ACK/NAK frames are validated but never forwarded.
func (p *Protocol) Rx(b byte) {
	frame, err := p.dec.DecodeByte(b)
	if err != nil {
		p.cfg.Stats.Frame()
		p.cfg.Stats.ChecksumErrors++
		p.cfg.Log.Debug().Err(err).Msg("Gent frame rejected")
		return
	}
	if frame == nil {
		return
	}

	p.cfg.Stats.Frame()
	if !frame.Event() {
		// Short ACK/NAK frames are valid but of no interest upstream.
		return
	}

	p.cfg.Forward(frame.Data)
	p.cfg.Stats.Forwarded()

	if p.cfg.Reply && p.cfg.Line != nil {
		if _, err := p.cfg.Line.Write(AckResponse); err != nil {
			p.cfg.Log.Debug().Err(err).Msg("Gent ACK write failed")
		}
	}
}
