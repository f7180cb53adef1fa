// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lanward Systems Ltd

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lanward/panelgate/pkg/panelproto"
)

// Event log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Monitor TUI model
type monitorModel struct {
	source        string
	protocol      panelproto.ID
	showAll       bool
	stats         *panelproto.Statistics
	eventLog      []monitorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	lastFrame     string
	lastFrameAt   time.Time
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
}

// Messages
type monitorTickMsg time.Time
type panelEventMsg struct {
	event panelEvent
}

func initialMonitorModel(source string, protocol panelproto.ID, showAll bool) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return monitorModel{
		source:        source,
		protocol:      protocol,
		showAll:       showAll,
		stats:         panelproto.NewStatistics(),
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		spinner:       sp,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case panelEventMsg:
		ev := msg.event

		if ev.isError && !m.synchronized {
			// Joined the byte stream mid-frame; not a real fault yet.
			m.invalidBytes++
			return m, nil
		}
		if ev.frame && !ev.isError && !m.synchronized {
			m.synchronized = true
			if m.invalidBytes > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after %d discarded decode attempts", m.invalidBytes), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}

		ev.apply(m.stats)

		if ev.message != "" {
			if ev.isError {
				m.addLogEntry(ev.message, true)
			} else {
				m.lastFrame = ev.message
				m.lastFrameAt = time.Now()
				if m.showAll {
					m.addLogEntry(ev.message, false)
				}
			}
		}
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("PANELGATE - PROTOCOL MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Source: %s | Protocol: %d | Mode: %s | Press 'q' to quit, 'r' to reset",
		m.source, m.protocol, func() string {
			if m.showAll {
				return "All frames"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for synchronization..."))
		s.WriteString("\n\n")
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (%d discarded decode attempts)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var forwardedPercent, errorPercent float64
	totalErrors := m.stats.ChecksumErrors + m.stats.CRCErrors + m.stats.FramingErrors +
		m.stats.FormatErrors + m.stats.ShortFrames
	if m.stats.TotalFrames > 0 {
		forwardedPercent = float64(m.stats.ForwardedFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Forwardable:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ForwardedFrames, forwardedPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if m.stats.ChecksumErrors > 0 || m.stats.CRCErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
		))
	}

	if m.stats.FramingErrors > 0 || m.stats.FormatErrors > 0 || m.stats.ShortFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Framing:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FramingErrors)),
			statsLabelStyle.Render("Format:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FormatErrors)),
			statsLabelStyle.Render("Short:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ShortFrames)),
		))
	}

	if m.stats.DiscardedBytes > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Discarded Bytes:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.DiscardedBytes)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Last valid frame (only shown once something decoded)
	if m.lastFrame != "" {
		s.WriteString(statsLabelStyle.Render("Latest Frame:"))
		s.WriteString("\n")

		frameContent := fmt.Sprintf("%s %s\n%s %s",
			statsLabelStyle.Render("At:"), statsValueStyle.Render(m.lastFrameAt.Format("15:04:05.000")),
			statsLabelStyle.Render("Content:"), statsValueStyle.Render(m.lastFrame),
		)
		s.WriteString(boxStyle.Render(frameContent))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
