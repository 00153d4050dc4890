package stream

import "time"

// DefaultInterval is the nominal progress reporting period.
const DefaultInterval = time.Second

// Meter accumulates byte counts and emits a Progress once per interval.
// It is used by sources from their read loop goroutine only.
type Meter struct {
	interval time.Duration
	now      func() time.Time

	start      time.Time
	last       time.Time
	lastBytes  uint64
	totalBytes uint64
}

// NewMeter creates a meter. interval <= 0 selects DefaultInterval.
func NewMeter(interval time.Duration) *Meter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Meter{interval: interval, now: time.Now}
}

// Start resets the meter at the beginning of a read loop.
func (m *Meter) Start() {
	m.start = m.now()
	m.last = m.start
	m.lastBytes = 0
	m.totalBytes = 0
}

// Add records n bytes and returns a Progress when the interval has elapsed
// since the previous report, nil otherwise.
func (m *Meter) Add(n int) *Progress {
	if m.start.IsZero() {
		m.Start()
	}
	m.totalBytes += uint64(n)

	now := m.now()
	since := now.Sub(m.last)
	if since < m.interval {
		return nil
	}

	p := &Progress{
		Elapsed:     now.Sub(m.start),
		TotalBytes:  m.totalBytes,
		CurrentRate: float64(m.totalBytes-m.lastBytes) / since.Seconds(),
	}
	if secs := p.Elapsed.Seconds(); secs > 0 {
		p.TotalRate = float64(m.totalBytes) / secs
	}

	m.last = now
	m.lastBytes = m.totalBytes
	return p
}

// TotalBytes returns the bytes recorded since Start.
func (m *Meter) TotalBytes() uint64 {
	return m.totalBytes
}
