// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package nimbus

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// freePort returns an available TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// startBroker runs an in-process MQTT broker and returns its URL.
func startBroker(t *testing.T) (*mochi.Server, string) {
	t.Helper()

	server := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))

	port := freePort(t)
	tcp := listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("test-%d", port),
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})
	require.NoError(t, server.AddListener(tcp))

	go func() {
		_ = server.Serve()
	}()
	t.Cleanup(func() { _ = server.Close() })

	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)

	return server, fmt.Sprintf("tcp://127.0.0.1:%d", port)
}

func TestDialAndPublish(t *testing.T) {
	server, url := startBroker(t)

	var mu sync.Mutex
	var got []string
	err := server.Subscribe("nimbus/dev/event", 1, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		mu.Lock()
		got = append(got, string(pk.Payload))
		mu.Unlock()
	})
	require.NoError(t, err)

	c, err := Dial(Options{
		Broker:   url,
		ClientID: "panelgate-test",
		Timeout:  5 * time.Second,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Publish("nimbus/dev/event", "AAECAwQ="))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "AAECAwQ=", got[0])
	mu.Unlock()
}

func TestClientServesTransferEncoder(t *testing.T) {
	server, url := startBroker(t)

	received := make(chan string, 1)
	require.NoError(t, server.Subscribe(panelproto.DefaultTopic, 1, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		select {
		case received <- string(pk.Payload):
		default:
		}
	}))

	c, err := Dial(Options{
		Broker:   url,
		ClientID: "panelgate-test",
		Timeout:  5 * time.Second,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	defer c.Close()

	// The client plugs straight into the transfer pipeline.
	enc := panelproto.NewEncoder(c, panelproto.ProtocolGent, zerolog.Nop())
	enc.Forward([]byte{0x09, 0x01, 0x02, 0x03})

	select {
	case body := <-received:
		assert.NotEmpty(t, body)
	case <-time.After(5 * time.Second):
		t.Fatal("transfer record never reached the broker")
	}
}

func TestDialUnreachableBroker(t *testing.T) {
	_, err := Dial(Options{
		Broker:   fmt.Sprintf("tcp://127.0.0.1:%d", freePort(t)),
		ClientID: "panelgate-test",
		Timeout:  time.Second,
		Log:      zerolog.Nop(),
	})
	require.Error(t, err)
}
