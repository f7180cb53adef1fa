// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package advbms

import "fmt"

// RequestNodeStatus is the fixed poll packet sent to the panel to verify the
// comms path, as recommended by the Advanced BMS specification. The panel
// replies with a Node Status packet which is acknowledged in the usual way.
var RequestNodeStatus = []byte{
	StartByte,      // Start of Message
	PacketIdentity, // Packet Identity (always 0x80)
	0x00,           // Destination address
	0x00,           // Source address
	0x01,           // Packet sequence number
	0x2A,           // Request Node Status
	0x03,           // Length
	0x01,           // Network Node
	EndOfMessages,  // No more messages
	0x8C,           // CRC high byte
	0x67,           // CRC low byte
	EndByte,        // End of Message
}

// AddClashCodes substitutes reserved byte values in an outgoing frame.
// Substitution applies only within the body: the start and end sentinels are
// copied through untouched, and every body byte of 0xFA and above becomes
// the two-byte sequence ClashByte, value-0xFA.
func AddClashCodes(frame []byte) []byte {
	if len(frame) < 2 {
		return append([]byte(nil), frame...)
	}

	out := make([]byte, 0, len(frame)*2)
	out = append(out, frame[0])
	for _, b := range frame[1 : len(frame)-1] {
		if b >= ClashByte {
			out = append(out, ClashByte, b-ClashByte)
		} else {
			out = append(out, b)
		}
	}
	return append(out, frame[len(frame)-1])
}

// RemoveClashCodes reverses AddClashCodes. It is the offline counterpart of
// the decoder's on-the-fly reconstitution, used for replay tooling and
// tests.
func RemoveClashCodes(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return append([]byte(nil), frame...), nil
	}

	out := make([]byte, 0, len(frame))
	out = append(out, frame[0])
	body := frame[1 : len(frame)-1]
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b != ClashByte {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(body) {
			return nil, fmt.Errorf("incomplete clash code at end of body")
		}
		if body[i] > clashMax {
			return nil, fmt.Errorf("invalid clash code follow-up 0x%02X", body[i])
		}
		out = append(out, body[i]+ClashByte)
	}
	return append(out, frame[len(frame)-1]), nil
}

// EncodePacket builds a complete wire frame around the given payload:
// framing sentinels, header, no-more-messages terminator, CRC and clash-code
// substitution. The payload is the chain of sub-messages only.
func EncodePacket(dest, src, seq byte, payload []byte) []byte {
	body := make([]byte, 0, len(payload)+8)
	body = append(body, PacketIdentity, dest, src, seq)
	body = append(body, payload...)
	body = append(body, EndOfMessages)

	hi, lo := crcUpdate(body, 0xFF, 0xFF)
	body = append(body, hi, lo)

	frame := make([]byte, 0, len(body)+2)
	frame = append(frame, StartByte)
	frame = append(frame, body...)
	frame = append(frame, EndByte)
	return AddClashCodes(frame)
}
