// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package advascii

import (
	"bytes"
	"strings"
	"testing"
)

// feed pushes bytes through the decoder, returning the first completed
// message and the first error encountered.
func feed(d *Decoder, data []byte) (*Message, error) {
	var msg *Message
	var firstErr error
	for _, b := range data {
		m, err := d.DecodeByte(b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if m != nil && err == nil && msg == nil {
			msg = m
		}
	}
	return msg, firstErr
}

// eventLines builds a plausible panel event: a 16-character header line and
// three full-width detail lines, each CR LF terminated.
func eventLines() string {
	var sb strings.Builder
	sb.WriteString("FIRE  Z001 D012\r\n")
	for i := 0; i < 3; i++ {
		sb.WriteString(strings.Repeat("X", MaxLineLength-2))
		sb.WriteString("\r\n")
	}
	return sb.String()
}

func TestSingleLineMessage(t *testing.T) {
	d := NewDecoder()
	msg, err := feed(d, []byte("LINE1\r\n\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a completed message")
	}
	if !bytes.Equal(msg.Data, []byte("LINE1\r\n\r\n")) {
		t.Errorf("message = %q, want %q", msg.Data, "LINE1\r\n\r\n")
	}
	if msg.Lines != 1 {
		t.Errorf("lines = %d, want 1", msg.Lines)
	}
}

func TestTypicalEventMessage(t *testing.T) {
	raw := eventLines() + "\r\n"
	msg, err := feed(NewDecoder(), []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a completed message")
	}
	if !bytes.Equal(msg.Data, []byte(raw)) {
		t.Errorf("message content mangled:\n got %q\nwant %q", msg.Data, raw)
	}
	if msg.Lines != 4 {
		t.Errorf("lines = %d, want 4", msg.Lines)
	}
}

func TestLeadingBlankLinesIgnored(t *testing.T) {
	d := NewDecoder()
	msg, err := feed(d, []byte("\r\n\r\nLINE1\r\n\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a completed message")
	}
	if !bytes.Equal(msg.Data, []byte("LINE1\r\n\r\n")) {
		t.Errorf("leading blank lines leaked into message: %q", msg.Data)
	}
}

func TestOverlongLineInIdleDiscarded(t *testing.T) {
	d := NewDecoder()

	junk := bytes.Repeat([]byte{'J'}, MaxLineLength+1)
	msg, err := feed(d, junk)
	if err == nil {
		t.Fatal("expected a line too long error")
	}
	if msg != nil {
		t.Fatal("junk must not complete a message")
	}

	// A blank line clears the remainder of the junk line.
	msg, err = feed(d, []byte("\r\nLINE1\r\n\r\n"))
	if err != nil {
		t.Fatalf("unexpected error after discard: %v", err)
	}
	if msg == nil || !bytes.Equal(msg.Data, []byte("LINE1\r\n\r\n")) {
		t.Fatalf("message after discard = %v", msg)
	}
}

func TestTooManyLinesCorruptsMessage(t *testing.T) {
	d := NewDecoder()

	var sb strings.Builder
	for i := 0; i <= MaxLines; i++ {
		sb.WriteString("AAAA\r\n")
	}
	msg, err := feed(d, []byte(sb.String()))
	if err == nil {
		t.Fatal("expected a too many lines error")
	}
	if msg != nil {
		t.Fatal("oversize message must not complete")
	}
	if !d.Recovering() {
		t.Fatal("decoder should be in recovery")
	}

	// The terminating blank line resynchronises.
	msg, err = feed(d, []byte("\r\nLINE1\r\n\r\n"))
	if err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if msg == nil || !bytes.Equal(msg.Data, []byte("LINE1\r\n\r\n")) {
		t.Fatalf("message after recovery = %v", msg)
	}
}

func TestBareLineFeedCorruptsMessage(t *testing.T) {
	d := NewDecoder()
	msg, err := feed(d, []byte("LINE1\r\nX\n"))
	if err == nil {
		t.Fatal("expected a malformed line ending error")
	}
	if msg != nil {
		t.Fatal("corrupt message must not complete")
	}
	if !d.Recovering() {
		t.Fatal("decoder should be in recovery")
	}
}

func TestMessageTooLongCorrupts(t *testing.T) {
	d := NewDecoder()

	// Full-width lines overrun the total message bound before the line
	// count bound.
	line := strings.Repeat("Y", MaxLineLength-2) + "\r\n"
	var msg *Message
	var err error
	for i := 0; i < MaxLines && err == nil; i++ {
		msg, err = feed(d, []byte(line))
	}
	if err == nil || !strings.Contains(err.Error(), "message too long") {
		t.Fatalf("expected a message too long error, got %v", err)
	}
	if msg != nil {
		t.Fatal("oversize message must not complete")
	}
}

func TestRecoverySwallowsUntilBlankLine(t *testing.T) {
	d := NewDecoder()
	feed(d, []byte("LINE1\r\nX\n")) // corrupt, enters recovery

	// Non-blank lines keep it in recovery.
	feed(d, []byte("MORE GARBAGE\r\nSTILL GARBAGE\r\n"))
	if !d.Recovering() {
		t.Fatal("decoder left recovery early")
	}

	feed(d, []byte("\r\n"))
	if d.Recovering() {
		t.Fatal("blank line did not resynchronise the decoder")
	}
}

func TestConsecutiveMessages(t *testing.T) {
	d := NewDecoder()
	var got [][]byte
	for _, b := range []byte("AAA\r\n\r\nBBB\r\n\r\n") {
		if m, err := d.DecodeByte(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		} else if m != nil {
			got = append(got, m.Data)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if !bytes.Equal(got[0], []byte("AAA\r\n\r\n")) || !bytes.Equal(got[1], []byte("BBB\r\n\r\n")) {
		t.Errorf("messages = %q", got)
	}
}
