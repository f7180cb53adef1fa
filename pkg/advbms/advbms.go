// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package advbms

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// Config carries the collaborators and settings for an Advanced BMS
// protocol instance.
type Config struct {
	Line    panelproto.Line
	Forward panelproto.ForwardFunc
	Stats   *panelproto.Statistics
	Log     zerolog.Logger

	// Serial settings, reported at start for the console.
	Baud    int
	Framing string

	// Verbose forwards every completed packet, including invalid ones and
	// partial frames cut off by a framing error. The default forwards only
	// valid packets carrying Device Status content.
	Verbose bool

	// Poll sends a Request Node Status packet at start to verify the comms
	// path to the panel.
	Poll bool
}

// Protocol is the Advanced MXPro BMS protocol instance.
type Protocol struct {
	cfg Config
	dec *Decoder
}

// New creates an Advanced BMS protocol instance.
func New(cfg Config) *Protocol {
	if cfg.Forward == nil {
		cfg.Forward = func([]byte) {}
	}
	if cfg.Stats == nil {
		cfg.Stats = panelproto.NewStatistics()
	}
	return &Protocol{cfg: cfg, dec: NewDecoder()}
}

// Start opens the panel interface and optionally polls the panel for its
// node status.
func (p *Protocol) Start() error {
	p.cfg.Log.Info().Int("baud", p.cfg.Baud).Str("framing", p.cfg.Framing).
		Bool("verbose", p.cfg.Verbose).Msg("Advanced BMS serial settings")
	if p.cfg.Line == nil {
		return nil
	}
	if err := p.cfg.Line.Open(); err != nil {
		return err
	}
	if p.cfg.Poll {
		if _, err := p.cfg.Line.Write(RequestNodeStatus); err != nil {
			p.cfg.Log.Warn().Err(err).Msg("node status poll failed")
		}
	}
	return nil
}

// Stop discards any partial frame and closes the panel interface.
func (p *Protocol) Stop() {
	p.dec.Reset()
	if p.cfg.Line != nil {
		p.cfg.Line.Close()
	}
}

// Rx processes one incoming panel byte. Valid packets carrying Device Status
// content are forwarded; verbose mode additionally forwards valid packets
// without such content, invalid packets and partial frames, for diagnosis.
func (p *Protocol) Rx(b byte) {
	pkt, err := p.dec.DecodeByte(b)
	if err != nil {
		// Framing error mid-frame. The partial bytes are only of use
		// when diagnosing a link problem.
		p.cfg.Stats.Frame()
		p.cfg.Stats.FramingErrors++
		var partial []byte
		if pkt != nil {
			partial = pkt.Data
		}
		p.cfg.Log.Debug().Err(err).Int("len", len(partial)).Msg("Advanced BMS framing error")
		p.deliver(partial, p.cfg.Verbose)
		return
	}
	if pkt == nil {
		return
	}

	p.cfg.Stats.Frame()
	if !pkt.Valid() {
		p.countError(pkt.Err())
		p.cfg.Log.Debug().Err(pkt.Err()).Int("len", len(pkt.Data)).Msg("Advanced BMS packet rejected")
		p.deliver(pkt.Data, p.cfg.Verbose)
		return
	}

	p.deliver(pkt.Data, p.cfg.Verbose || pkt.OfInterest())
}

// deliver forwards the bytes upstream or counts them as discarded.
func (p *Protocol) deliver(data []byte, forward bool) {
	if forward && len(data) > 0 {
		p.cfg.Forward(data)
		p.cfg.Stats.Forwarded()
		return
	}
	p.cfg.Stats.Discarded(len(data))
}

// countError classifies a validation failure into the statistics counters.
func (p *Protocol) countError(err error) {
	switch {
	case errors.Is(err, ErrTooShort):
		p.cfg.Stats.ShortFrames++
	case errors.Is(err, ErrCRC):
		p.cfg.Stats.CRCErrors++
	default:
		p.cfg.Stats.FormatErrors++
	}
}
