// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package panelproto

import (
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/rs/zerolog"
)

// Wire record layout constants. Both records are fixed-size structures; the
// length fields are three bytes on the wire but only the low byte is ever
// populated, with the remaining two hard-zeroed. Consumers rely on that
// truncated encoding, so it is preserved and tested rather than widened.
const (
	// EventRecordSize is the full event record structure size.
	EventRecordSize = 256

	// EventPayloadMax is the largest panel frame an event record can carry.
	EventPayloadMax = EventRecordSize - eventHeaderSize

	// TransferRecordSize is the full transfer record structure size.
	TransferRecordSize = 1024

	// TransferType is the fixed type byte of every transfer record.
	TransferType = 0x83

	// DefaultTopic is the publication topic for encoded transfer records.
	DefaultTopic = "nimbus/dev/event"

	// Header bytes preceding each record's payload:
	// type (1) + length (3) + timestamp (4) + fractional seconds (4).
	eventHeaderSize    = 12
	transferHeaderSize = 16
)

// Publisher delivers one encoded transfer record to the cloud. Failures are
// non-fatal; the encoder drops the event and carries on.
type Publisher interface {
	Publish(topic string, body string) error
}

// Encoder builds the nested event and transfer records around each validated
// panel frame and hands the Base64-encoded result to the publisher.
//
// The transfer id is a single rolling byte: it increments on every record and
// wraps naturally at 255. Not safe for concurrent use.
type Encoder struct {
	log        zerolog.Logger
	pub        Publisher
	topic      string
	protocolID ID
	transferID uint8
	rxEvents   uint64
	now        func() time.Time
}

// EncoderOption adjusts encoder construction.
type EncoderOption func(*Encoder)

// WithTopic overrides the publication topic.
func WithTopic(topic string) EncoderOption {
	return func(e *Encoder) { e.topic = topic }
}

// WithClock overrides the timestamp source. Test hook.
func WithClock(now func() time.Time) EncoderOption {
	return func(e *Encoder) { e.now = now }
}

// NewEncoder creates a transfer encoder stamping records with the given
// protocol id.
func NewEncoder(pub Publisher, protocolID ID, log zerolog.Logger, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		log:        log,
		pub:        pub,
		topic:      DefaultTopic,
		protocolID: protocolID,
		transferID: 1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the number of frames forwarded so far.
func (e *Encoder) Events() uint64 {
	return e.rxEvents
}

// TransferID returns the id the next transfer record will carry.
func (e *Encoder) TransferID() uint8 {
	return e.transferID
}

// Forward wraps one validated panel frame in an event record, wraps that in a
// transfer record, Base64-encodes the result and publishes it. A frame too
// large for the event record is dropped; so is a record the publisher
// rejects. Either way only the single event is lost and no parser state is
// affected.
func (e *Encoder) Forward(frame []byte) {
	if len(frame) > EventPayloadMax {
		e.log.Error().Int("bytes", len(frame)).Msg("Frame too large for event record, dropping")
		return
	}

	e.rxEvents++
	e.log.Info().Int("bytes", len(frame)).Uint64("event", e.rxEvents).Msg("Forwarding event")

	ts := uint32(e.now().Unix())

	// Event record: the +8 in the length field covers the timestamp and
	// fractional-seconds words. Only the low length byte is written.
	var event [EventRecordSize]byte
	event[0] = byte(e.protocolID)
	eventLen := uint8(len(frame) + 8)
	event[1] = eventLen
	binary.LittleEndian.PutUint32(event[4:8], ts)
	// Fractional part at [8:12] stays zero.
	copy(event[eventHeaderSize:], frame)

	// Total event record bytes, including its own type and length fields.
	serialLen := int(eventLen) + 4

	// Transfer record: length covers the transfer id, timestamp, fraction
	// and the embedded event record. The low byte is the whole encoding;
	// it wraps for frames pushing the nominal length past 255.
	var transfer [TransferRecordSize]byte
	transfer[0] = TransferType
	transferLen := uint8(serialLen + 12)
	transfer[1] = transferLen
	transfer[4] = e.transferID
	e.transferID++
	binary.LittleEndian.PutUint32(transfer[8:12], ts)
	// Fractional part at [12:16] stays zero.
	copy(transfer[transferHeaderSize:], event[:serialLen])

	// Published bytes include the transfer record's type and length fields.
	publishLen := serialLen + transferHeaderSize

	encoded := base64.StdEncoding.EncodeToString(transfer[:publishLen])
	if err := e.pub.Publish(e.topic, encoded); err != nil {
		e.log.Warn().Err(err).Str("topic", e.topic).Msg("Publish failed, event dropped")
	}
}
