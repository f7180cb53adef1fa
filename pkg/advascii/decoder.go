// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

// Package advascii implements the Advanced ASCII variant of the MXPro panel
// protocol: event messages as a group of CRLF-terminated text lines,
// terminated by a blank line.
//
// There is no framing or checksum. The decoder leans on the line structure
// instead: a message is one or more non-blank lines followed by a blank
// line, where blank means exactly a CR LF pair. Oversize lines or messages
// put the decoder into a recovery state that swallows input until the next
// blank line resynchronises it.
package advascii

import "fmt"

// Message geometry. The first line of a panel event is 16 characters, the
// next three are 42 each, then up to two optional lines plus two spare, all
// at most 42 characters including the CR LF pair. The terminating blank line
// brings a full message to at most 312 bytes.
const (
	// MaxLineLength is the longest permitted line, CR LF included.
	MaxLineLength = 42

	// MaxLines is the most non-blank lines one message may carry.
	MaxLines = 8

	// MaxMessageLength bounds the total collected bytes for one message.
	MaxMessageLength = 312
)

const (
	cr = 0x0D
	lf = 0x0A
)

// Decoder states
const (
	stateIdle = iota
	stateCollect
	stateRecover
)

// Message is one complete panel event message. Data holds the collected
// lines with their CR LF terminators, including the blank line that closed
// the message, so the bytes forwarded downstream match the bytes received.
type Message struct {
	Data  []byte
	Lines int
}

// Decoder implements the Advanced ASCII line collection state machine.
type Decoder struct {
	state     int
	buffer    [MaxMessageLength + MaxLineLength]byte
	length    int
	lineChars int
	lines     int
	prev      byte
}

// NewDecoder creates a new Advanced ASCII decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset resets the decoder to its idle state.
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.lineChars = 0
	d.lines = 0
	d.prev = 0
}

// Recovering reports whether the decoder is swallowing input while waiting
// for a blank line to resynchronise on.
func (d *Decoder) Recovering() bool {
	return d.state == stateRecover
}

// DecodeByte processes a single byte through the decoder state machine.
//
// Both results are nil while a message is in progress. A blank line closing
// a well-formed message returns it. Oversize lines, too many lines and a
// bare or misplaced line feed return the partial collection together with an
// error and leave the decoder in recovery until the next blank line.
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	switch d.state {
	case stateIdle:
		// Blank lines between messages are expected; wait for the first
		// line with real content.
		d.lineChars++
		d.buffer[d.length] = b
		d.length++

		if b == lf {
			if d.lineChars > 2 {
				// First line of a new message.
				d.lines = 1
				d.lineChars = 0
				d.state = stateCollect
			} else {
				// Blank, or near enough. Discard and keep waiting.
				d.length = 0
				d.lineChars = 0
			}
		} else if d.lineChars > MaxLineLength {
			// Too long to be the start of a message. Discard and keep
			// waiting; there is no message in progress to recover from.
			partial := d.take()
			d.prev = b
			return partial, fmt.Errorf("line too long, discarding %d bytes", len(partial.Data))
		}

		d.prev = b
		return nil, nil

	case stateCollect:
		d.lineChars++
		d.buffer[d.length] = b
		d.length++

		if b == lf {
			if d.lineChars > 2 {
				d.lines++
				if d.lines > MaxLines {
					partial := d.take()
					d.state = stateRecover
					d.prev = b
					return partial, fmt.Errorf("too many lines, discarding %d bytes", len(partial.Data))
				}
				d.lineChars = 0
			} else if d.lineChars == 2 && d.prev == cr {
				// Blank line: end of message. The terminating pair
				// travels with the rest of the content.
				msg := &Message{
					Data:  append([]byte(nil), d.buffer[:d.length]...),
					Lines: d.lines,
				}
				d.Reset()
				return msg, nil
			} else {
				// A lone line feed, or one not preceded by a carriage
				// return. The message is corrupt.
				partial := d.take()
				d.state = stateRecover
				d.prev = b
				return partial, fmt.Errorf("malformed line ending, discarding %d bytes", len(partial.Data))
			}
		} else if d.lineChars > MaxLineLength {
			partial := d.take()
			d.state = stateRecover
			d.prev = b
			return partial, fmt.Errorf("line too long, discarding %d bytes", len(partial.Data))
		} else if d.length >= MaxMessageLength {
			partial := d.take()
			d.state = stateRecover
			d.prev = b
			return partial, fmt.Errorf("message too long, discarding %d bytes", len(partial.Data))
		}

		d.prev = b
		return nil, nil

	case stateRecover:
		// Nothing is collected here; just watch for the blank line that
		// marks the end of the corrupt message.
		d.lineChars++
		if b == lf {
			if d.lineChars > 2 {
				d.lineChars = 0
			} else if d.lineChars == 2 && d.prev == cr {
				d.Reset()
			}
		}
		d.prev = b
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// take snapshots the collected bytes as a partial message and clears the
// collection counters. The caller decides the next state.
func (d *Decoder) take() *Message {
	msg := &Message{
		Data:  append([]byte(nil), d.buffer[:d.length]...),
		Lines: d.lines,
	}
	d.length = 0
	d.lineChars = 0
	d.lines = 0
	return msg
}
