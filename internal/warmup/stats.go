package warmup

import (
	"math"
	"time"
)

const (
	// rateStabilityThreshold is the maximum block rate standard deviation as
	// a fraction of the mean rate.
	rateStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the
	// expected inter-block interval.
	jitterStabilityThreshold = 0.20
)

// Stats describes the block cadence observed during warm-up.
// Rates are per second, jitter values are in seconds.
type Stats struct {
	Blocks     int           `json:"blocks" yaml:"blocks"`
	Bytes      uint64        `json:"bytes" yaml:"bytes"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	ByteRate   float64       `json:"byte_rate" yaml:"byte_rate"`
	RateMean   float64       `json:"block_rate_mean" yaml:"block_rate_mean"`
	RateStdDev float64       `json:"block_rate_stddev" yaml:"block_rate_stddev"`
	RateMin    float64       `json:"block_rate_min" yaml:"block_rate_min"`
	RateMax    float64       `json:"block_rate_max" yaml:"block_rate_max"`
	JitterMean float64       `json:"jitter_mean" yaml:"jitter_mean"`
	JitterMax  float64       `json:"jitter_max" yaml:"jitter_max"`
	IsStable   bool          `json:"stable" yaml:"stable"`
}

// CalculateRateStats computes block rate statistics from arrival timestamps.
//
// Steps:
//  1. Mean block rate over totalDuration
//  2. Instantaneous rate for every inter-block interval
//  3. Min/max and standard deviation of the instantaneous rate
//  4. Jitter against the expected interval (1/mean)
//  5. Stable when stddev < 15% of mean AND mean jitter < 20% of interval
func CalculateRateStats(times []time.Time, totalDuration time.Duration) *Stats {
	n := len(times)
	stats := &Stats{Blocks: n, Duration: totalDuration}

	if n == 0 || totalDuration <= 0 {
		return stats
	}

	stats.RateMean = float64(n) / totalDuration.Seconds()

	rates := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := times[i].Sub(times[i-1]).Seconds()
		if interval > 0 {
			rates = append(rates, 1.0/interval)
		}
	}
	if len(rates) == 0 {
		return stats
	}

	stats.RateMin = rates[0]
	stats.RateMax = rates[0]
	var sumSquares float64
	for _, r := range rates {
		stats.RateMin = math.Min(stats.RateMin, r)
		stats.RateMax = math.Max(stats.RateMax, r)
		diff := r - stats.RateMean
		sumSquares += diff * diff
	}
	stats.RateStdDev = math.Sqrt(sumSquares / float64(len(rates)))

	expected := 1.0 / stats.RateMean
	var jitterSum float64
	for i := 1; i < n; i++ {
		jitter := math.Abs(times[i].Sub(times[i-1]).Seconds() - expected)
		jitterSum += jitter
		stats.JitterMax = math.Max(stats.JitterMax, jitter)
	}
	stats.JitterMean = jitterSum / float64(n-1)

	rateStable := stats.RateStdDev < stats.RateMean*rateStabilityThreshold
	jitterStable := stats.JitterMean < expected*jitterStabilityThreshold
	stats.IsStable = rateStable && jitterStable

	return stats
}
