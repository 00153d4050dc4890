package stream

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMeter_ReportsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := NewMeter(time.Second)
	m.now = clock.now
	m.Start()

	var reports []*Progress
	for i := 0; i < 30; i++ {
		clock.advance(100 * time.Millisecond)
		if p := m.Add(1024); p != nil {
			reports = append(reports, p)
		}
	}

	if len(reports) != 3 {
		t.Fatalf("got %d reports in 3s, want 3", len(reports))
	}

	first := reports[0]
	if first.Elapsed != time.Second {
		t.Errorf("Elapsed = %v, want 1s", first.Elapsed)
	}
	if first.TotalBytes != 10*1024 {
		t.Errorf("TotalBytes = %d, want %d", first.TotalBytes, 10*1024)
	}
	if math.Abs(first.CurrentRate-10240) > 0.01 {
		t.Errorf("CurrentRate = %v, want 10240", first.CurrentRate)
	}
	if math.Abs(reports[2].TotalRate-10240) > 0.01 {
		t.Errorf("TotalRate = %v, want 10240", reports[2].TotalRate)
	}
}

func TestMeter_CurrentRateTracksLastInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := NewMeter(time.Second)
	m.now = clock.now
	m.Start()

	clock.advance(time.Second)
	m.Add(4000)

	clock.advance(time.Second)
	p := m.Add(1000)
	if p == nil {
		t.Fatal("no report after second interval")
	}
	if math.Abs(p.CurrentRate-1000) > 0.01 {
		t.Errorf("CurrentRate = %v, want 1000", p.CurrentRate)
	}
	if math.Abs(p.TotalRate-2500) > 0.01 {
		t.Errorf("TotalRate = %v, want 2500", p.TotalRate)
	}
}

func TestFlow_String(t *testing.T) {
	if FlowContinue.String() != "continue" || FlowStop.String() != "stop" {
		t.Errorf("unexpected Flow strings: %s %s", FlowContinue, FlowStop)
	}
}
