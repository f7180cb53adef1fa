// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd
//
// Panelgate - Fire Panel Protocol Gateway
//
// A gateway bridging fire alarm panel serial protocols to the Nimbus cloud
// backend over MQTT.

package main

import (
	"os"

	"github.com/lanward/panelgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
