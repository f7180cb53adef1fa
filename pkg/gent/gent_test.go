// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package gent

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// fakeLine records writes and open/close calls.
type fakeLine struct {
	opens  int
	closes int
	writes [][]byte
}

func (l *fakeLine) Open() error  { l.opens++; return nil }
func (l *fakeLine) Close() error { l.closes++; return nil }

func (l *fakeLine) Write(p []byte) (int, error) {
	l.writes = append(l.writes, append([]byte(nil), p...))
	return len(p), nil
}

func rxAll(p *Protocol, data []byte) {
	for _, b := range data {
		p.Rx(b)
	}
}

func TestProtocolForwardsEvents(t *testing.T) {
	var forwarded [][]byte
	stats := panelproto.NewStatistics()
	p := New(Config{
		Forward: func(frame []byte) { forwarded = append(forwarded, frame) },
		Stats:   stats,
		Log:     zerolog.Nop(),
	})

	rxAll(p, buildEventFrame(0x09, 0x01, 0x42))
	rxAll(p, []byte{0x00, 0x06, 0x00, 0x06}) // ACK, never forwarded

	if len(forwarded) != 1 {
		t.Fatalf("expected 1 forwarded frame, got %d", len(forwarded))
	}
	if len(forwarded[0]) != EventLength {
		t.Errorf("forwarded frame is %d bytes, want %d", len(forwarded[0]), EventLength)
	}
	if stats.TotalFrames != 2 || stats.ForwardedFrames != 1 {
		t.Errorf("stats: total=%d forwarded=%d, want 2/1", stats.TotalFrames, stats.ForwardedFrames)
	}
}

func TestProtocolAcknowledgesEvents(t *testing.T) {
	line := &fakeLine{}
	p := New(Config{
		Line:  line,
		Log:   zerolog.Nop(),
		Reply: true,
	})

	if err := p.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	rxAll(p, buildEventFrame(0x07, 0x01, 0x00))
	p.Stop()

	if line.opens != 1 || line.closes != 1 {
		t.Errorf("line opens=%d closes=%d, want 1/1", line.opens, line.closes)
	}
	if len(line.writes) != 1 || !bytes.Equal(line.writes[0], AckResponse) {
		t.Errorf("expected a single ACK response, got %v", line.writes)
	}
}

func TestProtocolCountsChecksumErrors(t *testing.T) {
	stats := panelproto.NewStatistics()
	p := New(Config{Stats: stats, Log: zerolog.Nop()})

	bad := buildEventFrame(0x09, 0x01, 0x42)
	bad[20] ^= 0x80
	rxAll(p, bad)

	if stats.ChecksumErrors != 1 {
		t.Errorf("checksum errors = %d, want 1", stats.ChecksumErrors)
	}
	if stats.ForwardedFrames != 0 {
		t.Errorf("corrupt frame must not be forwarded")
	}
}

func TestStopDiscardsPartialFrame(t *testing.T) {
	var forwarded int
	p := New(Config{
		Forward: func([]byte) { forwarded++ },
		Log:     zerolog.Nop(),
	})

	raw := buildEventFrame(0x09, 0x01, 0x42)
	rxAll(p, raw[:30])
	p.Stop()

	// The remaining bytes no longer line up with a frame start.
	rxAll(p, raw[30:])
	if forwarded != 0 {
		t.Errorf("partial frame survived a stop")
	}

	if err := p.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	rxAll(p, raw)
	if forwarded != 1 {
		t.Errorf("frame after restart not forwarded")
	}
}
