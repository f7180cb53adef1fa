// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

// Package advbms implements the Advanced MXPro BMS interface protocol:
// sentinel-framed binary packets with clash-code byte stuffing, a
// table-driven CRC-16 and a chained identifier-code payload format.
package advbms

import (
	"errors"
	"fmt"
)

// Validation failure categories, matched with errors.Is for statistics
// classification.
var (
	ErrTooShort = errors.New("packet too short")
	ErrCRC      = errors.New("invalid CRC")
	ErrIdentity = errors.New("invalid packet identity")
	ErrFormat   = errors.New("invalid payload format")
)

// Protocol framing bytes. Values of 0xFA and above are reserved and may not
// appear raw inside the packet body; they arrive clash-coded instead.
const (
	// StartByte is the unique start-of-message sentinel.
	StartByte = 0xFE

	// EndByte is the unique end-of-message sentinel.
	EndByte = 0xFF

	// ClashByte prefixes a two-byte escape for reserved body values:
	// 0xFA..0xFF are sent as ClashByte followed by value-0xFA.
	ClashByte = 0xFA

	// clashMax is the largest permitted escape follow-up byte.
	clashMax = 0x05

	// EndOfMessages terminates the identifier-code chain in the payload.
	EndOfMessages = 0xF0

	// PacketIdentity is the fixed second byte of every packet.
	PacketIdentity = 0x80
)

// Packet size limits.
const (
	// MinLength is the shortest valid packet, the 12-byte Network
	// Configuration Change.
	MinLength = 12

	// MaxLength bounds packet collection: 5 header bytes, 100 bytes of
	// payload, the no-more-messages byte, two CRC bytes and the end
	// sentinel. Without this bound a corrupt stream could be collected
	// indefinitely.
	MaxLength = 108
)

// Identifier codes valid inside a packet payload.
const (
	CodeAcknowledgement = 0x01
	CodeDeviceStatus    = 0x0A
	CodeNodeStatus      = 0x0B
	CodeNetworkConfig   = 0x0C
	CodeZoneText        = 0x0D
	CodeAnalogueValue   = 0x0E
	CodeOutputByBMS     = 0x0F
)

// idCodeLabels maps each known identifier code to its descriptive label.
var idCodeLabels = map[byte]string{
	CodeAcknowledgement: "Acknowledgement",
	CodeDeviceStatus:    "Device Status",
	CodeNodeStatus:      "Node Status",
	CodeNetworkConfig:   "Network Configuration Change",
	CodeZoneText:        "Zone Text",
	CodeAnalogueValue:   "Analogue Value",
	CodeOutputByBMS:     "Output Activated / Deactivated by BMS",
}

// IdentifierLabel returns the descriptive label for an identifier code.
func IdentifierLabel(code byte) string {
	if label, ok := idCodeLabels[code]; ok {
		return label
	}
	return "Unknown"
}

// Decoder states
const (
	stateIdle = iota
	stateCollect
	stateClash
)

// Packet is one delimited Advanced BMS frame, after clash-code removal.
// Data always includes the start and end sentinels. A packet may be invalid;
// Err reports why validation failed, and under the verbose override invalid
// packets are still forwarded for diagnosis.
type Packet struct {
	Data   []byte
	counts map[byte]int
	err    error
}

// Valid reports whether the packet passed full validation.
func (p *Packet) Valid() bool {
	return p.err == nil
}

// Err returns the validation or reception error, if any.
func (p *Packet) Err() error {
	return p.err
}

// Count returns how many sub-messages with the given identifier code the
// packet carries.
func (p *Packet) Count(code byte) int {
	return p.counts[code]
}

// OfInterest reports whether the packet carries at least one Device Status
// message, the content forwarded upstream by default.
func (p *Packet) OfInterest() bool {
	return p.counts[CodeDeviceStatus] > 0
}

// Decoder implements the Advanced BMS packet decoder state machine. One
// packet is collected between the start and end sentinels with clash codes
// reconstituted on the fly, then validated as a whole.
type Decoder struct {
	state  int
	buffer [MaxLength + 1]byte
	length int
}

// NewDecoder creates a new Advanced BMS decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset resets the decoder to its idle state.
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
}

// DecodeByte processes a single byte through the decoder state machine.
//
// While a frame is in progress both results are nil. When the end sentinel
// arrives the completed packet is returned; if validation failed the packet
// carries the error and its Err method reports it. A mid-frame framing error
// (unexpected clash code, invalid escape, over-length packet) returns the
// partial packet together with a non-nil error so the caller can apply the
// verbose override, and the decoder resynchronises on the next start
// sentinel.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	switch d.state {
	case stateIdle:
		// Wait for the unique start sentinel, ignore everything else.
		if b == StartByte {
			d.length = 0
			d.buffer[d.length] = b
			d.length++
			d.state = stateCollect
		}
		return nil, nil

	case stateCollect:
		switch {
		case b == EndByte:
			d.buffer[d.length] = b
			d.length++
			pkt := d.take()
			pkt.err = validate(pkt)
			return pkt, nil

		case b == ClashByte:
			// Start of an escape sequence; the next byte carries the
			// reserved value.
			d.state = stateClash
			return nil, nil

		case b > ClashByte && b < EndByte:
			// Reserved values must never appear raw inside the body.
			pkt := d.take()
			return pkt, fmt.Errorf("unexpected clash code 0x%02X", b)

		case d.length >= MaxLength:
			pkt := d.take()
			return pkt, fmt.Errorf("packet too long (%d bytes)", len(pkt.Data))

		default:
			d.buffer[d.length] = b
			d.length++
			return nil, nil
		}

	case stateClash:
		if b > clashMax {
			pkt := d.take()
			return pkt, fmt.Errorf("invalid clash code follow-up 0x%02X", b)
		}
		if d.length >= MaxLength {
			pkt := d.take()
			return pkt, fmt.Errorf("packet too long (%d bytes)", len(pkt.Data))
		}
		// Reconstitute the reserved value.
		d.buffer[d.length] = b + ClashByte
		d.length++
		d.state = stateCollect
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// take snapshots the collected bytes as a packet and resets for the next
// frame.
func (d *Decoder) take() *Packet {
	pkt := &Packet{
		Data:   append([]byte(nil), d.buffer[:d.length]...),
		counts: make(map[byte]int),
	}
	d.Reset()
	return pkt
}

// validate runs the full packet validation chain: length, CRC, packet
// identity and payload format. Identifier-code counts are filled in as a
// side effect of the format check.
func validate(pkt *Packet) error {
	n := len(pkt.Data)
	if n < MinLength {
		return fmt.Errorf("%w: %d bytes, minimum %d", ErrTooShort, n, MinLength)
	}
	if !verifyCRC(pkt.Data) {
		return ErrCRC
	}
	if pkt.Data[1] != PacketIdentity {
		return fmt.Errorf("%w: expected 0x%02X, found 0x%02X", ErrIdentity, PacketIdentity, pkt.Data[1])
	}
	return checkFormat(pkt)
}

// checkFormat walks the chain of {identifier code, length} sub-messages in
// the payload. Each code must be known and each length must land the scan on
// the next code, with the chain terminated by the no-more-messages code. A
// packet always carries at least one sub-message, so an empty chain is
// invalid. The scan may not run past the payload bound: the no-more-messages
// byte, the two CRC bytes and the end sentinel are excluded from it.
func checkFormat(pkt *Packet) error {
	data := pkt.Data
	maxOffset := len(data) - 4

	// The first identifier code is always the sixth byte.
	offset := 5
	code := data[offset]
	offset++

	for {
		if _, known := idCodeLabels[code]; !known {
			return fmt.Errorf("%w: unknown identifier code 0x%02X", ErrFormat, code)
		}
		pkt.counts[code]++

		// The length byte locates the next identifier code. It counts
		// the code and length bytes themselves, so anything under 2
		// cannot move the scan forward and would walk it in place or
		// backwards forever.
		if data[offset] < 2 {
			return fmt.Errorf("%w: message length byte 0x%02X cannot advance the chain", ErrFormat, data[offset])
		}
		offset += int(data[offset]) - 1

		// A corrupt length can point way out of bounds.
		if offset > maxOffset {
			return fmt.Errorf("%w: message chain exceeds payload bound", ErrFormat)
		}

		code = data[offset]
		offset++
		if code == EndOfMessages {
			return nil
		}
	}
}
