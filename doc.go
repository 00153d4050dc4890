// Package samplegrabber captures raw MAX2769 samples streamed by a Piksi's
// FT232H in synchronous FIFO mode and persists them without stalling the
// USB read loop.
//
// # Quick Start
//
//	src, err := ftdi.Open(ctx, ftdi.Config{})        // or replay.Open(path, ...)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Close()
//
//	out, err := sink.Open("capture.bin", sink.Options{Format: sink.FormatRaw})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	g, err := samplegrabber.New(samplegrabber.DefaultConfig(), src, out)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = g.Run(ctx) // blocks until interrupt, overflow, or a fault
//
// # Pipeline
//
// The producer runs inside the source's read loop and must never block for
// long. For every delivered block it:
//
//  1. Advances bytes_observed and skips bytes still inside the warm-up window
//     (default 50,000 bytes, split at byte granularity)
//  2. Decodes each remaining byte into two signed 3-bit samples using the
//     sign-magnitude table {1, 3, 5, 7, -1, -3, -5, -7}
//  3. Pushes the decoded buffer into the handoff channel (unbounded by
//     default, bounded mode blocks the producer instead of dropping)
//  4. Checks bit 0 of every decoded byte: a low bit is a FIFO overflow in
//     the FPGA and ends the session, after the block has been pushed
//
// A dedicated writer goroutine pops fixed 50-byte slices and writes them to
// the sink. After shutdown it keeps popping until the channel is empty, so
// samples accepted by the channel are never lost.
//
// # Shutdown
//
// Any of these ends the session, the first one wins:
//
//   - Stop or ctx cancellation (operator interrupt)
//   - FIFO overflow flag in the data
//   - Sink write error or short write
//   - Source read failure
//   - Source exhausted (replay input reached EOF)
//
// The producer checks the shutdown flag every block. The channel stops taking
// input only after the source has returned, and the writer then drains it.
// Run returns nil for an interrupt or an exhausted source and a *Fault
// otherwise.
//
// # Output
//
// Raw format: one int8 sample per byte, no header, temporal order. The sink
// is closed (and flushed) by Run after the writer has drained.
//
// # Thread Safety
//
// Stop and Stats are safe from any goroutine. Run may be called once.
package samplegrabber
