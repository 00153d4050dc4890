package samplegrabber

import (
	"time"

	"github.com/pmiettinen/piksi-sample-grabber/internal/handoff"
	"github.com/pmiettinen/piksi-sample-grabber/internal/progress"
	"github.com/pmiettinen/piksi-sample-grabber/internal/shutdown"
	"github.com/pmiettinen/piksi-sample-grabber/internal/stream"
	"github.com/pmiettinen/piksi-sample-grabber/internal/warmup"
	"github.com/pmiettinen/piksi-sample-grabber/internal/writer"
)

// Flow tells a source whether to keep reading.
type Flow = stream.Flow

const (
	FlowContinue = stream.FlowContinue
	FlowStop     = stream.FlowStop
)

// Progress is the periodic throughput snapshot supplied by a source.
type Progress = stream.Progress

// StreamFunc is the per-block callback a source invokes.
type StreamFunc = stream.Func

// Report is one progress report (see WithProgress).
type Report = progress.Report

// Reason classifies what ended a session.
type Reason = shutdown.Reason

const (
	ReasonNone        = shutdown.ReasonNone
	ReasonInterrupt   = shutdown.ReasonInterrupt
	ReasonOverflow    = shutdown.ReasonOverflow
	ReasonSinkFault   = shutdown.ReasonSinkFault
	ReasonSourceFault = shutdown.ReasonSourceFault
	ReasonSourceDone  = shutdown.ReasonSourceDone
)

// WarmupStats describes the block cadence measured during warm-up.
type WarmupStats = warmup.Stats

// ChannelStats is a snapshot of the handoff channel.
type ChannelStats = handoff.Stats

// Config contains pipeline settings
type Config struct {
	WarmupBytes     uint64 // Raw bytes discarded at start (0 = none)
	SliceBytes      int    // Writer slice size (default: 50)
	ChannelCapacity int    // Handoff channel capacity in bytes (0 = unbounded)
	SessionID       string // Generated when empty
}

// DefaultConfig returns the classic capture settings
func DefaultConfig() Config {
	return Config{
		WarmupBytes: warmup.DefaultThreshold,
		SliceBytes:  writer.DefaultSliceSize,
	}
}

// Stats is a point-in-time snapshot of a session.
//
// RawBytesPersisted counts raw bytes whose decoded samples were accepted by
// the handoff channel; each contributes two samples (bytes) to the sink.
type Stats struct {
	SessionID string        `json:"session_id"`
	State     string        `json:"state"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Blocks            uint64 `json:"blocks"`
	BytesObserved     uint64 `json:"bytes_observed"`
	RawBytesPersisted uint64 `json:"raw_bytes_persisted"`
	BytesWritten      uint64 `json:"bytes_written"`
	Overflows         uint64 `json:"fifo_overflows"`

	CurrentRate float64 `json:"current_rate_bps"`
	TotalRate   float64 `json:"total_rate_bps"`

	Channel ChannelStats `json:"channel"`
	Warmup  *WarmupStats `json:"warmup,omitempty"`

	Reason string `json:"end_reason"`
}

// Session states reported by Stats
const (
	StateIdle      = "idle"
	StateWarmingUp = "warming_up"
	StateCapturing = "capturing"
	StateStopping  = "stopping"
	StateStopped   = "stopped"
)
