// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package advascii

import (
	"github.com/rs/zerolog"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// Config carries the collaborators and settings for an Advanced ASCII
// protocol instance.
type Config struct {
	Line    panelproto.Line
	Forward panelproto.ForwardFunc
	Stats   *panelproto.Statistics
	Log     zerolog.Logger

	// Serial settings, reported at start for the console.
	Baud    int
	Framing string
}

// Protocol is the Advanced MXPro ASCII protocol instance.
type Protocol struct {
	cfg Config
	dec *Decoder
}

// New creates an Advanced ASCII protocol instance.
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
	p.cfg.Log.Info().Int("baud", p.cfg.Baud).Str("framing", p.cfg.Framing).Msg("Advanced ASCII serial settings")
	if p.cfg.Line == nil {
		return nil
	}
	return p.cfg.Line.Open()
}

// Stop discards any partial message and closes the panel interface.
func (p *Protocol) Stop() {
	p.dec.Reset()
	if p.cfg.Line != nil {
		p.cfg.Line.Close()
	}
}

// Rx processes one incoming panel byte. Complete messages are forwarded;
// corrupt ones are discarded, along with everything up to the blank line
// that ends them.
func (p *Protocol) Rx(b byte) {
	recovering := p.dec.Recovering()

	msg, err := p.dec.DecodeByte(b)
	if err != nil {
		p.cfg.Stats.Frame()
		p.cfg.Stats.FormatErrors++
		if msg != nil {
			p.cfg.Stats.Discarded(len(msg.Data))
		}
		p.cfg.Log.Debug().Err(err).Msg("Advanced ASCII message rejected")
		return
	}
	if recovering {
		// Bytes swallowed while waiting for resynchronisation.
		p.cfg.Stats.Discarded(1)
		return
	}
	if msg == nil {
		return
	}

	p.cfg.Stats.Frame()
	p.cfg.Forward(msg.Data)
	p.cfg.Stats.Forwarded()
	p.cfg.Log.Debug().Int("lines", msg.Lines).Int("len", len(msg.Data)).Msg("Advanced ASCII message")
}
