package samplegrabber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pmiettinen/piksi-sample-grabber/internal/decode"
	"github.com/pmiettinen/piksi-sample-grabber/internal/handoff"
	"github.com/pmiettinen/piksi-sample-grabber/internal/shutdown"
	"github.com/pmiettinen/piksi-sample-grabber/internal/warmup"
	"github.com/pmiettinen/piksi-sample-grabber/internal/writer"
)

// Option configures a Grabber.
type Option func(*Grabber)

// WithProgress registers fn to receive a Report every time the source
// supplies progress (nominally once per second). fn runs on the producer
// goroutine and must not block.
func WithProgress(fn func(Report)) Option {
	return func(g *Grabber) {
		g.onProgress = fn
	}
}

// Grabber is one capture session: source -> decode -> channel -> writer -> sink.
type Grabber struct {
	cfg  Config
	id   string
	src  Source
	sink Sink

	gate   *warmup.Gate
	ch     *handoff.Channel
	coord  *shutdown.Coordinator
	writer *writer.Worker
	bufs   sync.Pool

	onProgress func(Report)

	// Producer-written counters, read anywhere
	blocks            atomic.Uint64
	rawBytesPersisted atomic.Uint64
	overflows         atomic.Uint64
	lastProgress      atomic.Pointer[Progress]

	running   atomic.Bool
	finished  atomic.Bool
	startedAt atomic.Pointer[time.Time]
	endedAt   atomic.Pointer[time.Time]
}

// New creates a session. It validates cfg and takes ownership of sink.
func New(cfg Config, src Source, sink Sink, opts ...Option) (*Grabber, error) {
	if src == nil {
		return nil, fmt.Errorf("samplegrabber: source is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("samplegrabber: sink is required")
	}
	if cfg.SliceBytes < 0 {
		return nil, fmt.Errorf("samplegrabber: slice size must be > 0, got %d", cfg.SliceBytes)
	}
	if cfg.SliceBytes == 0 {
		cfg.SliceBytes = writer.DefaultSliceSize
	}
	if cfg.ChannelCapacity < 0 {
		return nil, fmt.Errorf("samplegrabber: channel capacity must be >= 0, got %d", cfg.ChannelCapacity)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}

	g := &Grabber{
		cfg:   cfg,
		id:    cfg.SessionID,
		src:   src,
		sink:  sink,
		gate:  warmup.NewGate(cfg.WarmupBytes),
		coord: shutdown.New(),
	}
	g.ch = handoff.New(cfg.ChannelCapacity, handoff.WithRecycler(g.putBuf))
	g.writer = writer.New(g.ch, sink, g.coord, cfg.SliceBytes)
	// Shutdown only releases a blocked producer. Input ends once the source
	// has returned, see Run.
	g.coord.OnShutdown(g.ch.Cancel)

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// SessionID returns the session identifier.
func (g *Grabber) SessionID() string {
	return g.id
}

// Run captures until shutdown, drains the channel, closes the sink and
// returns. Cancelling ctx is equivalent to Stop.
//
// Returns nil for an interrupt or an exhausted source, and a *Fault
// wrapping ErrFIFOOverflow, the sink error or the source error otherwise.
func (g *Grabber) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer g.finished.Store(true)

	started := time.Now()
	g.startedAt.Store(&started)

	slog.Info("grabber: starting capture",
		"session_id", g.id,
		"warmup_bytes", g.cfg.WarmupBytes,
		"slice_bytes", g.cfg.SliceBytes,
		"channel_capacity", g.cfg.ChannelCapacity,
	)

	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.coord.OnShutdown(cancel)

	// External cancellation is an operator interrupt
	go func() {
		select {
		case <-ctx.Done():
			g.coord.Request(shutdown.ReasonInterrupt, nil)
		case <-g.coord.Done():
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writer.Run()
	}()

	err := g.src.Stream(srcCtx, g.onBlock)
	switch {
	case err != nil && g.coord.Requested():
		slog.Debug("grabber: source returned after shutdown", "error", err)
	case err != nil && ctx.Err() != nil:
		g.coord.Request(shutdown.ReasonInterrupt, nil)
	case err != nil:
		slog.Error("grabber: source read failed", "error", err)
		g.coord.Request(shutdown.ReasonSourceFault, fmt.Errorf("source: %w", err))
	default:
		g.coord.Request(shutdown.ReasonSourceDone, nil)
	}

	// The producer has returned, nothing else can be pushed. The writer
	// drains what is pending and exits.
	g.ch.Shutdown()
	<-writerDone

	closeErr := g.sink.Close()
	if closeErr != nil {
		slog.Error("grabber: closing sink failed", "error", closeErr)
	}

	ended := time.Now()
	g.endedAt.Store(&ended)

	reason := g.coord.Reason()
	st := g.Stats()
	slog.Info("grabber: capture ended",
		"session_id", g.id,
		"reason", reason.String(),
		"duration", ended.Sub(started),
		"bytes_observed", st.BytesObserved,
		"raw_bytes_persisted", st.RawBytesPersisted,
		"bytes_written", st.BytesWritten,
		"fifo_overflows", st.Overflows,
	)

	if reason.Fatal() {
		return &Fault{Reason: reason, Err: g.coord.Err()}
	}
	if closeErr != nil {
		return &Fault{Reason: ReasonSinkFault, Err: closeErr}
	}
	return nil
}

// Stop requests an operator interrupt. Safe from any goroutine, idempotent.
func (g *Grabber) Stop() {
	g.coord.Request(shutdown.ReasonInterrupt, nil)
}

// Reason returns what ended the session (ReasonNone while running).
func (g *Grabber) Reason() Reason {
	return g.coord.Reason()
}

// onBlock is the producer: invoked synchronously by the source per block.
func (g *Grabber) onBlock(block []byte, p *Progress) Flow {
	if g.coord.Requested() {
		return FlowStop
	}
	g.blocks.Add(1)

	skip := g.gate.Admit(len(block))
	if eligible := block[skip:]; len(eligible) > 0 {
		if !g.deliver(eligible) {
			return FlowStop
		}
	}

	if p != nil {
		g.lastProgress.Store(p)
		if g.onProgress != nil {
			g.onProgress(g.report(p))
		}
	}

	if g.coord.Requested() {
		return FlowStop
	}
	return FlowContinue
}

// deliver decodes raw into a pooled buffer and hands it to the channel.
// Returns false when the channel refused it on shutdown.
func (g *Grabber) deliver(raw []byte) bool {
	buf, res := decode.Append(g.getBuf(len(raw)*decode.SamplesPerByte), raw)

	persistedBefore := g.rawBytesPersisted.Load()
	if err := g.ch.Push(buf); err != nil {
		g.putBuf(buf)
		if !errors.Is(err, handoff.ErrCancelled) {
			slog.Error("grabber: handoff push failed", "error", err)
		}
		return false
	}
	g.rawBytesPersisted.Add(uint64(len(raw)))

	if res.Overflows > 0 {
		g.overflows.Add(uint64(res.Overflows))
		taken := persistedBefore + uint64(res.FirstOverflow)
		slog.Error("grabber: FPGA FIFO error flag set",
			"samples_taken", taken,
			"flagged_bytes", res.Overflows,
		)
		g.coord.Request(shutdown.ReasonOverflow,
			fmt.Errorf("%w: %d samples taken", ErrFIFOOverflow, taken))
	}
	return true
}

// getBuf returns an empty buffer with room for n bytes.
func (g *Grabber) getBuf(n int) []byte {
	if p, ok := g.bufs.Get().(*[]byte); ok && cap(*p) >= n {
		return (*p)[:0]
	}
	return make([]byte, 0, n)
}

func (g *Grabber) putBuf(b []byte) {
	b = b[:0]
	g.bufs.Put(&b)
}

func (g *Grabber) report(p *Progress) Report {
	return Report{
		SessionID:        g.id,
		Timestamp:        time.Now(),
		ElapsedSeconds:   p.Elapsed.Seconds(),
		TotalBytes:       p.TotalBytes,
		CurrentRate:      p.CurrentRate,
		TotalRate:        p.TotalRate,
		Dropouts:         g.overflows.Load(),
		SamplesPersisted: g.rawBytesPersisted.Load(),
		BytesWritten:     g.writer.Written(),
		PendingBytes:     g.ch.Len(),
	}
}

// State returns the session lifecycle state.
func (g *Grabber) State() string {
	switch {
	case g.finished.Load():
		return StateStopped
	case g.coord.Requested():
		return StateStopping
	case !g.running.Load():
		return StateIdle
	case !g.gate.Done():
		return StateWarmingUp
	default:
		return StateCapturing
	}
}

// Stats returns a snapshot of the session counters. Safe from any goroutine.
func (g *Grabber) Stats() Stats {
	st := Stats{
		SessionID:         g.id,
		State:             g.State(),
		Blocks:            g.blocks.Load(),
		BytesObserved:     g.gate.Observed(),
		RawBytesPersisted: g.rawBytesPersisted.Load(),
		BytesWritten:      g.writer.Written(),
		Overflows:         g.overflows.Load(),
		Channel:           g.ch.Stats(),
		Warmup:            g.gate.Stats(),
		Reason:            g.coord.Reason().String(),
	}
	if t := g.startedAt.Load(); t != nil {
		st.StartedAt = *t
		st.Elapsed = time.Since(*t)
		if e := g.endedAt.Load(); e != nil {
			st.Elapsed = e.Sub(*t)
		}
	}
	if p := g.lastProgress.Load(); p != nil {
		st.CurrentRate = p.CurrentRate
		st.TotalRate = p.TotalRate
	}
	return st
}
