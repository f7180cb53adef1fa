// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lanward/panelgate/pkg/advascii"
	"github.com/lanward/panelgate/pkg/advbms"
	"github.com/lanward/panelgate/pkg/config"
	"github.com/lanward/panelgate/pkg/gent"
	"github.com/lanward/panelgate/pkg/nimbus"
	"github.com/lanward/panelgate/pkg/panelproto"
)

var (
	runProtocol      uint8
	runVerbose       bool
	runStatsInterval int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the panel gateway",
	Long: `Run the gateway: decode the configured panel protocol and forward events
to Nimbus.

The protocol comes from the config file or the --protocol flag:
  1  Gent Vigilon Universal
  5  Advanced MXPro BMS I/F
  10 Advanced MXPro ASCII

Other protocol ids are reserved table slots with no handler; selecting one
leaves the gateway idle with the panel interface shut down.

With Nimbus publishing disabled in the config, records are encoded and
logged but not sent, which is useful for commissioning a panel connection
before credentials exist.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Uint8Var(&runProtocol, "protocol", 0, "Protocol id (overrides config)")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Forward all packets, including invalid ones (Advanced BMS)")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 60, "Statistics log interval in seconds (0 to disable)")
}

// logPublisher stands in for Nimbus when publishing is disabled.
type logPublisher struct {
	log zerolog.Logger
}

func (p *logPublisher) Publish(topic, body string) error {
	p.log.Debug().Str("topic", topic).Int("len", len(body)).Msg("Nimbus disabled, record dropped")
	return nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("protocol") {
		cfg.Panel.Protocol = runProtocol
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Panel.Verbose = runVerbose
	}

	protocolID := panelproto.ID(cfg.Panel.Protocol)
	if protocolID >= panelproto.ProtocolCount {
		return fmt.Errorf("unknown protocol id %d", cfg.Panel.Protocol)
	}

	// Publisher: real Nimbus connection, or a logging stub.
	var pub panelproto.Publisher
	if cfg.Nimbus.Enabled {
		client, err := nimbus.Dial(nimbus.Options{
			Broker:   cfg.Nimbus.Broker,
			ClientID: cfg.Nimbus.ClientID,
			Username: cfg.Nimbus.Username,
			Password: os.Getenv("PANELGATE_NIMBUS_PASSWORD"),
			Log:      log,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		pub = client
	} else {
		log.Info().Msg("Nimbus publishing disabled")
		pub = &logPublisher{log: log}
	}

	encoder := panelproto.NewEncoder(pub, protocolID, log,
		panelproto.WithTopic(cfg.Nimbus.Topic))
	stats := panelproto.NewStatistics()

	line := NewPanelLine(func() (Connection, string, error) {
		return OpenConnection(cfg.Panel)
	}, log)

	registry := buildRegistry(cfg.Panel, line, encoder.Forward, stats, log)
	registry.SwitchTo(protocolID)
	defer registry.SwitchTo(panelproto.ProtocolNone)

	desc := registry.Descriptor(protocolID)
	log.Info().Str("protocol", desc.Label).Msg("Gateway running, press Ctrl+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var statsCh <-chan time.Time
	if runStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(runStatsInterval) * time.Second)
		defer ticker.Stop()
		statsCh = ticker.C
	}

	for {
		select {
		case b := <-line.Bytes():
			registry.Feed(b)

		case <-statsCh:
			stats.CalculateRates()
			log.Info().
				Uint64("frames", stats.TotalFrames).
				Uint64("forwarded", stats.ForwardedFrames).
				Uint64("events", encoder.Events()).
				Float64("frame_rate", stats.FrameRate).
				Float64("error_rate", stats.ErrorRate).
				Msg("Statistics")

		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			fmt.Print(stats.String())
			return nil
		}
	}
}

// buildRegistry populates the protocol table with the implemented handlers.
// The remaining table slots stay as placeholders.
func buildRegistry(panel config.PanelConfig, line panelproto.Line, forward panelproto.ForwardFunc, stats *panelproto.Statistics, log zerolog.Logger) *panelproto.Registry {
	registry := panelproto.NewRegistry(log)

	registry.Register(panelproto.ProtocolGent, gent.New(gent.Config{
		Line:    line,
		Forward: forward,
		Stats:   stats,
		Log:     log,
		Baud:    panel.Baud,
		Framing: panel.Framing,
		Reply:   panel.Reply,
	}))

	registry.Register(panelproto.ProtocolAdvanced, advbms.New(advbms.Config{
		Line:    line,
		Forward: forward,
		Stats:   stats,
		Log:     log,
		Baud:    panel.Baud,
		Framing: panel.Framing,
		Verbose: panel.Verbose,
		Poll:    panel.Poll,
	}))

	registry.Register(panelproto.ProtocolAdvancedASCII, advascii.New(advascii.Config{
		Line:    line,
		Forward: forward,
		Stats:   stats,
		Log:     log,
		Baud:    panel.Baud,
		Framing: panel.Framing,
	}))

	return registry
}
