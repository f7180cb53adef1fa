// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package panelproto

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePublisher captures published records.
type fakePublisher struct {
	topics []string
	bodies []string
	err    error
}

func (p *fakePublisher) Publish(topic, body string) error {
	p.topics = append(p.topics, topic)
	p.bodies = append(p.bodies, body)
	return p.err
}

func (p *fakePublisher) lastRecord(t *testing.T) []byte {
	t.Helper()
	if len(p.bodies) == 0 {
		t.Fatal("nothing published")
	}
	raw, err := base64.StdEncoding.DecodeString(p.bodies[len(p.bodies)-1])
	if err != nil {
		t.Fatalf("published body is not valid base64: %v", err)
	}
	return raw
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestForwardBuildsTransferRecord(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEncoder(pub, ProtocolAdvanced, zerolog.Nop(), WithClock(fixedClock(0x01020304)))

	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i)
	}
	e.Forward(payload)

	raw := pub.lastRecord(t)

	// 50 payload bytes wrapped twice: 62-byte event record inside a
	// 78-byte transfer record.
	if len(raw) != 78 {
		t.Fatalf("published %d bytes, want 78", len(raw))
	}
	if raw[0] != TransferType {
		t.Errorf("transfer type = 0x%02X, want 0x%02X", raw[0], TransferType)
	}
	if raw[1] != 74 || raw[2] != 0 || raw[3] != 0 {
		t.Errorf("transfer length field = % X, want 4A 00 00", raw[1:4])
	}
	if raw[4] != 1 {
		t.Errorf("transfer id = %d, want 1", raw[4])
	}
	if ts := binary.LittleEndian.Uint32(raw[8:12]); ts != 0x01020304 {
		t.Errorf("transfer timestamp = 0x%08X", ts)
	}

	// Embedded event record.
	event := raw[16:]
	if event[0] != byte(ProtocolAdvanced) {
		t.Errorf("event protocol id = %d, want %d", event[0], ProtocolAdvanced)
	}
	if event[1] != 58 || event[2] != 0 || event[3] != 0 {
		t.Errorf("event length field = % X, want 3A 00 00", event[1:4])
	}
	if ts := binary.LittleEndian.Uint32(event[4:8]); ts != 0x01020304 {
		t.Errorf("event timestamp = 0x%08X", ts)
	}
	for i, b := range event[8:12] {
		if b != 0 {
			t.Errorf("fractional seconds byte %d = 0x%02X, want 0", i, b)
		}
	}
	for i, b := range event[12:62] {
		if b != byte(i) {
			t.Fatalf("payload byte %d = 0x%02X, want 0x%02X", i, b, byte(i))
		}
	}

	if pub.topics[0] != DefaultTopic {
		t.Errorf("topic = %q, want %q", pub.topics[0], DefaultTopic)
	}
}

func TestTransferIDIncrementsAndWraps(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEncoder(pub, ProtocolGent, zerolog.Nop(), WithClock(fixedClock(1000)))

	frame := make([]byte, 10)
	var ids []byte
	for i := 0; i < 257; i++ {
		e.Forward(frame)
		ids = append(ids, pub.lastRecord(t)[4])
	}

	if ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("ids start %d, %d, want 1, 2", ids[0], ids[1])
	}
	// The id is a single rolling byte: 255 is followed by 0.
	if ids[254] != 255 || ids[255] != 0 || ids[256] != 1 {
		t.Errorf("ids around wrap = %d, %d, %d, want 255, 0, 1", ids[254], ids[255], ids[256])
	}
	if e.Events() != 257 {
		t.Errorf("events = %d, want 257", e.Events())
	}
}

func TestTransferLengthByteWraps(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEncoder(pub, ProtocolGent, zerolog.Nop(), WithClock(fixedClock(1000)))

	// The largest frame an event record can carry pushes the transfer
	// record's nominal length past one byte; the field wraps while the
	// published record stays complete.
	frame := make([]byte, EventPayloadMax)
	e.Forward(frame)

	raw := pub.lastRecord(t)
	if len(raw) != 272 {
		t.Fatalf("published %d bytes, want 272", len(raw))
	}
	if raw[1] != 12 {
		t.Errorf("transfer length byte = %d, want 12 (wrapped)", raw[1])
	}
}

func TestOversizeFrameDropped(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEncoder(pub, ProtocolGent, zerolog.Nop())

	e.Forward(make([]byte, EventPayloadMax+1))

	if len(pub.bodies) != 0 {
		t.Error("oversize frame published")
	}
	if e.Events() != 0 {
		t.Errorf("events = %d, want 0", e.Events())
	}
	if e.TransferID() != 1 {
		t.Errorf("transfer id advanced to %d for a dropped frame", e.TransferID())
	}
}

func TestPublishFailureDropsOnlyThatEvent(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	e := NewEncoder(pub, ProtocolGent, zerolog.Nop())

	e.Forward(make([]byte, 10))
	pub.err = nil
	e.Forward(make([]byte, 10))

	if len(pub.bodies) != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", len(pub.bodies))
	}
	// The id still advances past the failed record.
	if pub.lastRecord(t)[4] != 2 {
		t.Errorf("second record id = %d, want 2", pub.lastRecord(t)[4])
	}
}

func TestCustomTopic(t *testing.T) {
	pub := &fakePublisher{}
	e := NewEncoder(pub, ProtocolGent, zerolog.Nop(), WithTopic("nimbus/test/event"))

	e.Forward(make([]byte, 5))

	if pub.topics[0] != "nimbus/test/event" {
		t.Errorf("topic = %q", pub.topics[0])
	}
}
