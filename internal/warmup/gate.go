// Package warmup holds back decoded output until the upstream FIFO has
// settled, and measures the block cadence while it does.
package warmup

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultThreshold is the number of raw bytes discarded before capture starts.
const DefaultThreshold = 50000

// maxTrackedBlocks bounds the arrival timestamps kept for statistics.
const maxTrackedBlocks = 4096

// Gate suppresses the first threshold raw bytes of a session.
//
// Policy: global byte indices 0..threshold-1 are suppressed, index threshold
// onward is eligible. A block that straddles the threshold is split, so only
// its tail is decoded.
//
// Thread-safety:
//   - Admit MUST be called from the producer goroutine only
//   - Observed, Done and Stats are safe from any goroutine
type Gate struct {
	threshold uint64
	observed  atomic.Uint64

	// Warm-up measurement (producer goroutine only until stats is published)
	now     func() time.Time
	started time.Time
	times   []time.Time

	stats atomic.Pointer[Stats]
}

// NewGate creates a gate that discards the first threshold bytes.
// A zero threshold admits everything from the first byte.
func NewGate(threshold uint64) *Gate {
	return &Gate{
		threshold: threshold,
		now:       time.Now,
	}
}

// Threshold returns the configured warm-up length in bytes.
func (g *Gate) Threshold() uint64 {
	return g.threshold
}

// Admit accounts for a block of n raw bytes and returns how many of its
// leading bytes fall inside the warm-up window. The caller decodes
// block[skip:] only.
func (g *Gate) Admit(n int) (skip int) {
	if n <= 0 {
		return 0
	}

	after := g.observed.Add(uint64(n))
	before := after - uint64(n)

	if before >= g.threshold {
		return 0
	}

	g.track()

	if after < g.threshold {
		return n
	}

	g.finish(after)
	return int(g.threshold - before)
}

// Observed returns the number of raw bytes seen so far, warm-up included.
func (g *Gate) Observed() uint64 {
	return g.observed.Load()
}

// Done reports whether the warm-up window has been fully consumed.
func (g *Gate) Done() bool {
	return g.observed.Load() >= g.threshold
}

// Stats returns the warm-up measurement, or nil while still warming up
// (and always nil for a zero threshold).
func (g *Gate) Stats() *Stats {
	return g.stats.Load()
}

func (g *Gate) track() {
	t := g.now()
	if g.started.IsZero() {
		g.started = t
	}
	if len(g.times) < maxTrackedBlocks {
		g.times = append(g.times, t)
	}
}

func (g *Gate) finish(observed uint64) {
	duration := g.now().Sub(g.started)
	stats := CalculateRateStats(g.times, duration)
	stats.Bytes = g.threshold
	if duration > 0 {
		stats.ByteRate = float64(g.threshold) / duration.Seconds()
	}
	g.times = nil
	g.stats.Store(stats)

	slog.Info("warmup: threshold reached, capture enabled",
		"threshold_bytes", g.threshold,
		"observed_bytes", observed,
		"blocks", stats.Blocks,
		"duration", stats.Duration,
		"byte_rate", stats.ByteRate,
		"block_rate_mean", stats.RateMean,
		"stable", stats.IsStable,
	)
}
