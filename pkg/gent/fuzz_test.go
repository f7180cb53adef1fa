// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Lanward Systems Ltd

package gent

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// TestFuzzRandomNoise feeds random bytes and verifies the decoder never
// produces a frame whose checksum does not hold.
func TestFuzzRandomNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	for i := 0; i < rounds; i++ {
		chunk := make([]byte, 1+rng.Intn(128))
		rng.Read(chunk)

		for _, b := range chunk {
			frame, err := d.DecodeByte(b)
			if err != nil {
				continue
			}
			if frame == nil {
				continue
			}
			if n := len(frame.Data); n != EventLength && n != AckNakLength {
				t.Fatalf("round %d: frame of impossible length %d", i, n)
			}
			var sum uint16
			for _, fb := range frame.Data[:len(frame.Data)-2] {
				sum += uint16(fb)
			}
			if frame.Data[len(frame.Data)-2] != byte(sum>>8) ||
				frame.Data[len(frame.Data)-1] != byte(sum) {
				t.Fatalf("round %d: frame completed with bad checksum: % X", i, frame.Data)
			}
		}
	}
}

// TestFuzzFramesInNoise embeds valid frames in random noise and verifies
// each one is recovered once the decoder is back in sync.
func TestFuzzFramesInNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	msbs := []byte{0x04, 0x05, 0x07, 0x09, 0x0A, 0x12}
	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		// Leading noise that cannot start a frame.
		noise := make([]byte, rng.Intn(32))
		for j := range noise {
			noise[j] = 0x13 + byte(rng.Intn(0xED))
		}

		raw := buildEventFrame(msbs[rng.Intn(len(msbs))], byte(rng.Intn(256)), byte(rng.Intn(256)))

		frame, err := feed(d, append(noise, raw...))
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, err)
		}
		if frame == nil || !frame.Event() {
			t.Fatalf("round %d: embedded frame not recovered", i)
		}
	}
}
