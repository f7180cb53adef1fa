// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package panelproto

import (
	"fmt"
	"time"
)

// Statistics tracks frame and error counters for the running protocol.
// Driven from the single gateway goroutine; not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ForwardedFrames uint64
	ChecksumErrors  uint64
	CRCErrors       uint64
	FramingErrors   uint64
	FormatErrors    uint64
	ShortFrames     uint64
	DiscardedBytes  uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Frame records one completed frame attempt, valid or not.
func (s *Statistics) Frame() {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()
}

// Forwarded records one frame handed to the transfer encoder.
func (s *Statistics) Forwarded() {
	s.ForwardedFrames++
	s.LastUpdateTime = time.Now()
}

// Discarded records bytes dropped without producing a frame.
func (s *Statistics) Discarded(n int) {
	s.DiscardedBytes += uint64(n)
	s.LastUpdateTime = time.Now()
}

func (s *Statistics) errorCount() uint64 {
	return s.ChecksumErrors + s.CRCErrors + s.FramingErrors + s.FormatErrors + s.ShortFrames
}

// CalculateRates recalculates the frame and error rates.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.CalculateRates()

	var forwardedPercent float64
	if s.TotalFrames > 0 {
		forwardedPercent = float64(s.ForwardedFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Forwarded:       %8d (%.1f%%)\n", s.ForwardedFrames, forwardedPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d\n", s.FramingErrors)
	}
	if s.FormatErrors > 0 {
		result += fmt.Sprintf("Format Errors:   %8d\n", s.FormatErrors)
	}
	if s.ShortFrames > 0 {
		result += fmt.Sprintf("Short Frames:    %8d\n", s.ShortFrames)
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters.
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{StartTime: now, LastUpdateTime: now}
}
