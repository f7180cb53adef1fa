// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package config

// Framing is one supported serial framing option for the panel interface.
type Framing struct {
	Label    string
	DataBits int
	Parity   string // "none", "even" or "odd"
	StopBits int
}

// framingTable lists the framing options the panel interface supports.
var framingTable = []Framing{
	{"8n1", 8, "none", 1},
	{"8n2", 8, "none", 2},
	{"8e1", 8, "even", 1},
	{"8e2", 8, "even", 2},
	{"8o1", 8, "odd", 1},
	{"8o2", 8, "odd", 2},
	{"7e1", 7, "even", 1},
	{"7e2", 7, "even", 2},
	{"7o1", 7, "odd", 1},
	{"7o2", 7, "odd", 2},
}

// baudRates lists the baud rates the panel interface supports.
var baudRates = []int{300, 600, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400}

// LookupFraming returns the framing option with the given label.
func LookupFraming(label string) (Framing, bool) {
	for _, f := range framingTable {
		if f.Label == label {
			return f, true
		}
	}
	return Framing{}, false
}

// FramingLabels returns the supported framing labels, for console messages.
func FramingLabels() []string {
	labels := make([]string, len(framingTable))
	for i, f := range framingTable {
		labels[i] = f.Label
	}
	return labels
}

// ValidBaud reports whether the panel interface supports the given rate.
func ValidBaud(baud int) bool {
	for _, b := range baudRates {
		if b == baud {
			return true
		}
	}
	return false
}
