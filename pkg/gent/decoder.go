// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

// Package gent implements the Gent Vigilon Universal panel protocol: fixed
// length binary frames protected by a 16-bit sum checksum.
//
// There is no unique start-of-frame byte. A frame begins with a two byte
// event code whose permitted combinations are known, so the decoder
// tentatively collects from any in-range first byte and relies on event-pair
// validation plus the checksum to reject noise. Event frames are a fixed 59
// bytes; ACK and NAK frames are 4 bytes and, while validated, are never
// forwarded.
package gent

import "fmt"

// Frame size and event code constants.
const (
	// EventLength is the fixed size of a Gent event frame.
	EventLength = 59

	// AckNakLength is the fixed size of ACK and NAK frames.
	AckNakLength = 4

	// maxEventMSB is the largest permitted first byte of an event code.
	maxEventMSB = 0x12

	asciiACK = 0x06
	asciiNAK = 0x15
)

// Decoder states
const (
	stateEventMSB = iota
	stateEventLSB
	stateCollect
	stateChecksumHi
	stateChecksumLo
)

// Frame is one checksum-verified Gent frame.
type Frame struct {
	Data []byte
}

// Event reports whether this is a full 59-byte event frame. ACK/NAK frames
// are the only other kind.
func (f *Frame) Event() bool {
	return len(f.Data) == EventLength
}

// Ack reports whether this is an ACK frame.
func (f *Frame) Ack() bool {
	return len(f.Data) == AckNakLength && f.Data[1] == asciiACK
}

// Nak reports whether this is a NAK frame.
func (f *Frame) Nak() bool {
	return len(f.Data) == AckNakLength && f.Data[1] == asciiNAK
}

// Decoder implements the Gent frame decoder state machine.
type Decoder struct {
	state    int
	buffer   [EventLength]byte
	index    int
	checksum uint16
}

// NewDecoder creates a new Gent decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset resets the decoder to its initial state.
func (d *Decoder) Reset() {
	d.state = stateEventMSB
	d.index = 0
	d.checksum = 0
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil while the frame is incomplete. A
// checksum mismatch returns an error and resets the decoder; out-of-range or
// invalid event codes are treated as sync loss and discarded silently.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateEventMSB:
		if b > maxEventMSB {
			// Definitely not a valid start byte, skip.
			return nil, nil
		}
		// In range, but no way to be certain yet. Assume valid and
		// start collecting.
		d.index = 0
		d.buffer[d.index] = b
		d.index++
		d.checksum = uint16(b)
		d.state = stateEventLSB
		return nil, nil

	case stateEventLSB:
		d.buffer[d.index] = b
		d.index++
		d.checksum += uint16(b)

		if !validEventPair(d.buffer[0], d.buffer[1]) {
			// Out of sync, or not a frame of interest. Restart.
			d.Reset()
			return nil, nil
		}

		// The event pair fixes the frame length: ACK/NAK frames carry
		// no body, events run to 59 bytes.
		if b == asciiACK || b == asciiNAK {
			d.state = stateChecksumHi
		} else {
			d.state = stateCollect
		}
		return nil, nil

	case stateCollect:
		if d.index >= EventLength-2 {
			// Cannot happen with the fixed transition below, but fail
			// closed rather than overrun.
			d.Reset()
			return nil, fmt.Errorf("buffer overflow at byte %d", d.index)
		}
		d.buffer[d.index] = b
		d.index++
		d.checksum += uint16(b)
		if d.index == EventLength-2 {
			// Body complete, checksum bytes follow.
			d.state = stateChecksumHi
		}
		return nil, nil

	case stateChecksumHi:
		if b != byte(d.checksum>>8) {
			sum := d.checksum
			d.Reset()
			return nil, fmt.Errorf("checksum mismatch: expected high byte 0x%02X, got 0x%02X", byte(sum>>8), b)
		}
		d.buffer[d.index] = b
		d.index++
		d.state = stateChecksumLo
		return nil, nil

	case stateChecksumLo:
		if b != byte(d.checksum&0x00FF) {
			sum := d.checksum
			d.Reset()
			return nil, fmt.Errorf("checksum mismatch: expected low byte 0x%02X, got 0x%02X", byte(sum&0x00FF), b)
		}
		d.buffer[d.index] = b
		d.index++

		frame := &Frame{Data: append([]byte(nil), d.buffer[:d.index]...)}
		d.Reset()
		return frame, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// validEventPair verifies the first two bytes against the known Gent event
// types:
//
//	MSB   LSB
//	0     1     Fire Reset
//	0     2     All faults cleared
//	0     3     All disablements cleared
//	0     4     Alarms silenced
//	0     5     Alarms sounded
//	0     6     Ack
//	0    21     Nak
//	2     1     Supervisory on
//	2     2     Supervisory off
//	4     x     Fault - System
//	5     x     Fault - Outstation/Loop
//	7     x     Disablement
//	9     x     Fire
//	10    x     Super Fire
//	18    x     Cancel buzzer (not documented)
func validEventPair(msb, lsb byte) bool {
	switch msb {
	case 0:
		return (lsb >= 1 && lsb <= asciiACK) || lsb == asciiNAK
	case 2:
		return lsb == 1 || lsb == 2
	case 4, 5, 7, 9, 10, 18:
		return true
	}
	return false
}
