// Package progress emits periodic throughput and fault statistics for a
// capture session. It is purely observational.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of reports buffered for publishers.
const DefaultQueueSize = 16

// Report is one progress snapshot. Rates are in bytes per second.
type Report struct {
	SessionID        string    `json:"session_id"`
	Timestamp        time.Time `json:"timestamp"`
	ElapsedSeconds   float64   `json:"elapsed_s"`
	TotalBytes       uint64    `json:"total_bytes"`
	CurrentRate      float64   `json:"current_rate_bps"`
	TotalRate        float64   `json:"total_rate_bps"`
	Dropouts         uint64    `json:"dropouts"`
	SamplesPersisted uint64    `json:"samples_persisted"`
	BytesWritten     uint64    `json:"bytes_written"`
	PendingBytes     int       `json:"pending_bytes"`
}

// Line renders the report in the capture tool's classic one-line format.
func (r Report) Line() string {
	return fmt.Sprintf("%10.02fs total time %9.3f MiB captured %7.1f kB/s curr rate %7.1f kB/s totalrate %d dropouts",
		r.ElapsedSeconds,
		float64(r.TotalBytes)/(1024.0*1024.0),
		r.CurrentRate/1024.0,
		r.TotalRate/1024.0,
		r.Dropouts,
	)
}

// Publisher forwards reports to an external system (e.g. MQTT).
type Publisher interface {
	Publish(r Report) error
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithPublisher adds a publisher fed from the background queue.
func WithPublisher(p Publisher) Option {
	return func(r *Reporter) {
		r.publishers = append(r.publishers, p)
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// Reporter writes progress lines to a diagnostic writer and hands reports
// to publishers without ever blocking the caller.
//
// Queue policy: drop-new. When the queue is full the report is discarded
// for publishers (the diagnostic line is still written) and counted.
type Reporter struct {
	out        io.Writer
	publishers []Publisher
	queueSize  int

	queue chan Report
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	emitted       atomic.Uint64
	dropped       atomic.Uint64
	publishErrors atomic.Uint64
}

// New creates a reporter writing lines to out (nil disables lines).
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		out:       out,
		queueSize: DefaultQueueSize,
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan Report, r.queueSize)

	if len(r.publishers) > 0 {
		r.wg.Add(1)
		go r.publishLoop()
	}
	return r
}

// Emit writes the report line and queues the report for publishers.
// Safe to call from the producer goroutine: it never blocks on publishers.
func (r *Reporter) Emit(rep Report) {
	r.emitted.Add(1)

	if r.out != nil {
		fmt.Fprintln(r.out, rep.Line())
	}
	slog.Debug("progress: report",
		"elapsed_s", rep.ElapsedSeconds,
		"total_bytes", rep.TotalBytes,
		"current_rate_bps", rep.CurrentRate,
		"dropouts", rep.Dropouts,
		"pending_bytes", rep.PendingBytes,
	)

	if len(r.publishers) == 0 {
		return
	}
	select {
	case r.queue <- rep:
	default:
		r.dropped.Add(1)
	}
}

func (r *Reporter) publishLoop() {
	defer r.wg.Done()

	for {
		select {
		case rep := <-r.queue:
			r.publish(rep)
		case <-r.quit:
			// Flush what is already queued
			for {
				select {
				case rep := <-r.queue:
					r.publish(rep)
				default:
					return
				}
			}
		}
	}
}

func (r *Reporter) publish(rep Report) {
	for _, p := range r.publishers {
		if err := p.Publish(rep); err != nil {
			r.publishErrors.Add(1)
			slog.Warn("progress: publish failed", "error", err)
		}
	}
}

// Close stops the publisher goroutine after flushing queued reports.
// Idempotent. Reports emitted after Close are never published.
func (r *Reporter) Close() {
	r.once.Do(func() {
		close(r.quit)
		r.wg.Wait()
	})
}

// Emitted returns the number of reports produced.
func (r *Reporter) Emitted() uint64 {
	return r.emitted.Load()
}

// Dropped returns the number of reports discarded because the queue was full.
func (r *Reporter) Dropped() uint64 {
	return r.dropped.Load()
}

// PublishErrors returns the number of failed publisher calls.
func (r *Reporter) PublishErrors() uint64 {
	return r.publishErrors.Load()
}
