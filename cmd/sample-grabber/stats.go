package main

import (
	"fmt"
	"io"
	"time"

	samplegrabber "github.com/pmiettinen/piksi-sample-grabber"
	"github.com/pmiettinen/piksi-sample-grabber/internal/progress"
)

// printFinalStats prints the end-of-session summary
func printFinalStats(w io.Writer, st samplegrabber.Stats, reporter *progress.Reporter) {
	const mib = 1024.0 * 1024.0

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╭─────────────────────────────────────────────────────────────────╮")
	fmt.Fprintf(w, "│ Capture Summary (Duration: %v)\n", st.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, "├─────────────────────────────────────────────────────────────────┤")
	fmt.Fprintf(w, "│   Session:            %s\n", st.SessionID)
	fmt.Fprintf(w, "│   End Reason:         %s\n", st.Reason)
	fmt.Fprintf(w, "│   Bytes Observed:     %12d (%.3f MiB)\n", st.BytesObserved, float64(st.BytesObserved)/mib)
	fmt.Fprintf(w, "│   Bytes Persisted:    %12d raw\n", st.RawBytesPersisted)
	fmt.Fprintf(w, "│   Samples Written:    %12d\n", st.BytesWritten)
	fmt.Fprintf(w, "│   FIFO Overflows:     %12d\n", st.Overflows)
	fmt.Fprintf(w, "│   Channel High Water: %12d bytes\n", st.Channel.HighWater)
	if st.Channel.BlockedPushes > 0 {
		fmt.Fprintf(w, "│   Blocked Pushes:     %12d\n", st.Channel.BlockedPushes)
	}
	if st.Warmup != nil {
		fmt.Fprintf(w, "│   Warm-up:            %d blocks in %v (stable: %v)\n",
			st.Warmup.Blocks, st.Warmup.Duration.Round(time.Millisecond), st.Warmup.IsStable)
	}
	if dropped := reporter.Dropped(); dropped > 0 {
		fmt.Fprintf(w, "│   Reports Dropped:    %12d\n", dropped)
	}
	fmt.Fprintln(w, "╰─────────────────────────────────────────────────────────────────╯")
}
