package warmup

import (
	"testing"
	"time"
)

func TestGate_Boundary(t *testing.T) {
	tests := []struct {
		name      string
		threshold uint64
		blocks    []int
		wantSkips []int
	}{
		{
			name:      "zero threshold admits everything",
			threshold: 0,
			blocks:    []int{4, 4},
			wantSkips: []int{0, 0},
		},
		{
			name:      "block ending exactly on threshold is suppressed",
			threshold: 8,
			blocks:    []int{4, 4, 4},
			wantSkips: []int{4, 4, 0},
		},
		{
			name:      "crossing mid block splits it",
			threshold: 10,
			blocks:    []int{4, 4, 4, 4},
			wantSkips: []int{4, 4, 2, 0},
		},
		{
			name:      "single block larger than threshold",
			threshold: 3,
			blocks:    []int{16},
			wantSkips: []int{3},
		},
		{
			name:      "empty blocks do not advance",
			threshold: 2,
			blocks:    []int{0, 1, 0, 1, 1},
			wantSkips: []int{0, 1, 0, 1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.threshold)
			var total uint64
			for i, n := range tt.blocks {
				if got := g.Admit(n); got != tt.wantSkips[i] {
					t.Errorf("block %d: Admit(%d) = %d, want %d", i, n, got, tt.wantSkips[i])
				}
				total += uint64(n)
			}
			if g.Observed() != total {
				t.Errorf("Observed() = %d, want %d", g.Observed(), total)
			}
		})
	}
}

// Byte T (0-based) is the first eligible byte, T-1 is the last suppressed one.
func TestGate_DefaultThresholdFirstEligibleByte(t *testing.T) {
	g := NewGate(DefaultThreshold)

	if skip := g.Admit(DefaultThreshold - 1); skip != DefaultThreshold-1 {
		t.Fatalf("Admit(T-1) skip = %d, want %d", skip, DefaultThreshold-1)
	}
	if g.Done() {
		t.Fatal("Done() = true before threshold")
	}

	if skip := g.Admit(2); skip != 1 {
		t.Fatalf("Admit(2) across threshold skip = %d, want 1", skip)
	}
	if !g.Done() {
		t.Fatal("Done() = false after threshold")
	}
}

func TestGate_StatsPublishedOnCrossing(t *testing.T) {
	base := time.Unix(1700000000, 0)
	tick := 0
	g := NewGate(1000)
	g.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 10 * time.Millisecond)
	}

	for i := 0; i < 9; i++ {
		g.Admit(100)
		if g.Stats() != nil {
			t.Fatalf("Stats() published after %d bytes", g.Observed())
		}
	}
	g.Admit(100)

	stats := g.Stats()
	if stats == nil {
		t.Fatal("Stats() = nil after crossing threshold")
	}
	if stats.Blocks != 10 {
		t.Errorf("Blocks = %d, want 10", stats.Blocks)
	}
	if stats.Bytes != 1000 {
		t.Errorf("Bytes = %d, want 1000", stats.Bytes)
	}
	if !stats.IsStable {
		t.Errorf("IsStable = false for a fixed 10ms cadence: %+v", stats)
	}

	// Further blocks are not tracked
	g.Admit(100)
	if g.Stats() != stats {
		t.Error("Stats() replaced after warm-up")
	}
}
