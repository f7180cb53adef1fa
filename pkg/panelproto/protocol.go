// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

// Package panelproto provides the protocol registry and event transfer
// pipeline for the panelgate fire-panel gateway.
//
// A gateway instance runs at most one panel protocol at a time. The registry
// holds a fixed table of protocol descriptors, mediates clean stop/start
// transitions between them, and dispatches incoming panel bytes to whichever
// protocol is currently running. Validated frames are handed to the transfer
// encoder, which wraps them in the cloud wire records and publishes them.
package panelproto

import (
	"github.com/rs/zerolog"
)

// ID identifies a panel protocol in the registry table.
type ID uint8

// Protocol identifiers. The table position is the identifier, so the order
// here is part of the configuration interface and must not change.
const (
	ProtocolNone ID = iota
	ProtocolGent
	ProtocolKentec
	ProtocolSiemensASCII
	ProtocolMinervaASCII
	ProtocolAdvanced
	ProtocolNotifier
	ProtocolGentASCII
	ProtocolZiton
	ProtocolReserved
	ProtocolAdvancedASCII
	ProtocolCount
)

// InterfaceKind is the physical interface a protocol runs over.
type InterfaceKind int

// Interface kinds. None is valid: installations without a panel protocol
// shut the interface hardware down entirely.
const (
	InterfaceNone InterfaceKind = iota
	InterfaceSerial
	InterfaceUSB
	InterfaceEthernet
)

// String returns the interface kind descriptor used in console messages.
func (k InterfaceKind) String() string {
	switch k {
	case InterfaceNone:
		return "None"
	case InterfaceSerial:
		return "serial"
	case InterfaceUSB:
		return "USB"
	case InterfaceEthernet:
		return "Ethernet"
	default:
		return "unknown"
	}
}

// ForwardFunc receives one validated frame for onward transfer. The slice is
// only valid for the duration of the call; implementations must copy if they
// retain it.
type ForwardFunc func(frame []byte)

// Line is the physical panel interface a protocol drives. Open powers up and
// opens the interface, Close shuts it down again. Write sends reply bytes
// back to the panel; protocols tolerate write errors silently.
type Line interface {
	Open() error
	Close() error
	Write(p []byte) (int, error)
}

// Protocol is one panel protocol implementation. Start and Stop bracket the
// protocol's use of its physical interface; Rx consumes one incoming byte.
// All three are called from the single gateway goroutine only.
type Protocol interface {
	Start() error
	Stop()
	Rx(b byte)
}

// Descriptor is one immutable registry entry. Placeholder slots for
// unimplemented protocols carry a nil Protocol.
type Descriptor struct {
	ID       ID
	Label    string
	Kind     InterfaceKind
	Protocol Protocol
}

// Registry owns the notion of the currently active protocol and mediates
// start/stop transitions between table entries. Not safe for concurrent use;
// the gateway drives it from a single goroutine.
type Registry struct {
	log     zerolog.Logger
	table   [ProtocolCount]Descriptor
	current ID
	running Protocol
}

// NewRegistry creates a registry populated with placeholder descriptors.
// Callers install real protocols with Register before switching to them.
func NewRegistry(log zerolog.Logger) *Registry {
	r := &Registry{log: log}
	for i, label := range protocolLabels {
		r.table[i] = Descriptor{ID: ID(i), Label: label, Kind: protocolKinds[i]}
	}
	return r
}

// Table position is the protocol id.
var protocolLabels = [ProtocolCount]string{
	"None configured",
	"Gent Vigilon Universal",
	"Kentec Syncro AS",
	"Siemens Cerberus CS1140 ASCII",
	"Tyco Minerva ASCII",
	"Advanced MXPro BMS I/F",
	"Notifier ID3000",
	"Gent Vigilon ASCII",
	"Ziton ZP3",
	"Reserved",
	"Advanced MXPro ASCII",
}

var protocolKinds = [ProtocolCount]InterfaceKind{
	InterfaceNone,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceSerial,
	InterfaceNone,
	InterfaceSerial,
}

// Register installs a protocol implementation into its table slot. The label
// and interface kind for the slot are fixed; only the implementation varies.
func (r *Registry) Register(id ID, p Protocol) {
	if id >= ProtocolCount {
		return
	}
	r.table[id].Protocol = p
}

// Descriptor returns the table entry for id, or the none-configured entry
// when id is out of range.
func (r *Registry) Descriptor(id ID) Descriptor {
	if id >= ProtocolCount {
		return r.table[ProtocolNone]
	}
	return r.table[id]
}

// Active returns the id of the currently selected protocol.
func (r *Registry) Active() ID {
	return r.current
}

// Running reports whether a protocol is currently started and receiving
// bytes.
func (r *Registry) Running() bool {
	return r.running != nil
}

// SwitchTo stops any running protocol and starts the protocol with the given
// id. The stop handler always runs first, even when re-selecting the current
// id, so that a protocol can be cleanly restarted. An id of ProtocolNone, an
// out-of-range id, a placeholder slot, or a start failure all leave the
// interface shut down with no parser installed and Active reporting
// ProtocolNone. Safe to call with no prior
// protocol active, and idempotent under repeated calls with the same id.
func (r *Registry) SwitchTo(id ID) {
	if r.running != nil {
		cur := r.table[r.current]
		r.running.Stop()
		r.running = nil
		r.log.Info().
			Uint8("id", uint8(cur.ID)).
			Str("label", cur.Label).
			Stringer("interface", cur.Kind).
			Msg("Stopping protocol")
	}

	if id >= ProtocolCount {
		r.log.Error().Uint8("id", uint8(id)).Msg("Unknown protocol id")
		r.log.Info().Msg("No protocol configured")
		r.current = ProtocolNone
		return
	}

	next := r.table[id]
	switch {
	case next.Protocol != nil:
		r.log.Info().
			Uint8("id", uint8(next.ID)).
			Str("label", next.Label).
			Stringer("interface", next.Kind).
			Msg("Starting protocol")
		if err := next.Protocol.Start(); err != nil {
			r.log.Error().Err(err).
				Uint8("id", uint8(next.ID)).
				Str("label", next.Label).
				Msg("Error starting protocol")
			r.log.Info().Msg("No protocol configured")
			r.current = ProtocolNone
			return
		}
		r.running = next.Protocol
	case id == ProtocolNone:
		r.log.Info().Msg("No protocol configured")
	default:
		r.log.Error().
			Uint8("id", uint8(next.ID)).
			Str("label", next.Label).
			Stringer("interface", next.Kind).
			Msg("Error starting protocol: no handler")
		r.log.Info().Msg("No protocol configured")
		r.current = ProtocolNone
		return
	}

	r.current = id
}

// Feed passes one incoming panel byte to the running protocol, if any.
func (r *Registry) Feed(b byte) {
	if r.running != nil {
		r.running.Rx(b)
	}
}
