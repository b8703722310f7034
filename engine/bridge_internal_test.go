package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/graph"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// testBridge builds a bridge bound to a stopped offline transport, marked
// running so ticks can be driven by hand without the poll goroutine.
func testBridge(clock *fakeClock) (*Bridge, *graph.Transport, func()) {
	b := NewBridge(clock.now)
	octx := graph.NewOfflineContext(1, 8000)
	t := octx.Transport()
	b.mu.Lock()
	b.running = true
	b.transport = t
	b.mu.Unlock()
	return b, t, octx.Dispose
}

func TestTriggerDecayWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	b, _, cleanup := testBridge(clock)
	defer cleanup()

	b.EmitTrigger(7, "C4", lofield.TriggerNote)
	if lines := b.ActiveLines(); len(lines) != 1 || lines[0] != 7 {
		t.Fatalf("active lines after emit: got %v, want [7]", lines)
	}
	clock.advance(100 * time.Millisecond)
	b.tick()
	if lines := b.ActiveLines(); len(lines) != 1 {
		t.Fatalf("line decayed too early: %v", lines)
	}
	clock.advance(50 * time.Millisecond) // age now exactly the decay window
	b.tick()
	if lines := b.ActiveLines(); len(lines) != 0 {
		t.Fatalf("line still active past decay: %v", lines)
	}
}

func TestTransportStoppedTransition(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	b, _, cleanup := testBridge(clock)
	defer cleanup()

	b.mu.Lock()
	b.snapshot = lofield.TransportSnapshot{Playing: true, Bar: 2, Beat: 3}
	b.mu.Unlock()

	var published []lofield.TransportSnapshot
	unsubscribe := b.SubscribeTransport(func(s lofield.TransportSnapshot) {
		published = append(published, s)
	})
	defer unsubscribe()

	b.tick() // transport is stopped, last snapshot claims playing
	if len(published) != 1 || published[0].Playing {
		t.Fatalf("expected one playing=false snapshot, got %v", published)
	}
	if published[0].Bar != 2 || published[0].Beat != 3 {
		t.Fatalf("stopped snapshot lost position: %+v", published[0])
	}
	b.tick() // already coalesced, nothing new
	if len(published) != 1 {
		t.Fatalf("stopped transition published twice: %v", published)
	}
}

func TestParsePosition(t *testing.T) {
	for _, tc := range []struct {
		pos        string
		bars, beat int
		sixteenths float64
	}{
		{"0:0:0", 0, 0, 0},
		{"2:3:1.5", 2, 3, 1.5},
		{"31:1:3.999", 31, 1, 3.999},
		{"garbage", 0, 0, 0},
	} {
		bars, beats, sixteenths := parsePosition(tc.pos)
		if bars != tc.bars || beats != tc.beat || sixteenths != tc.sixteenths {
			t.Errorf("parsePosition(%q) = %v %v %v", tc.pos, bars, beats, sixteenths)
		}
	}
}

func TestMeaningfulChangeCoalescing(t *testing.T) {
	base := lofield.TransportSnapshot{Bar: 1, Beat: 2, BPM: 84, Playing: true, ProgressWithinBar: 0.25}
	same := base
	same.ProgressWithinBar = 0.255 // below the 0.01 publish threshold
	same.BPM = 84.2                // rounds to the same bpm
	if meaningfulChange(base, same) {
		t.Error("sub-threshold change was published")
	}
	for _, next := range []lofield.TransportSnapshot{
		{Bar: 2, Beat: 2, BPM: 84, Playing: true, ProgressWithinBar: 0.25},
		{Bar: 1, Beat: 3, BPM: 84, Playing: true, ProgressWithinBar: 0.25},
		{Bar: 1, Beat: 2, BPM: 90, Playing: true, ProgressWithinBar: 0.25},
		{Bar: 1, Beat: 2, BPM: 84, Playing: false, ProgressWithinBar: 0.25},
		{Bar: 1, Beat: 2, BPM: 84, Playing: true, ProgressWithinBar: 0.3},
	} {
		if !meaningfulChange(base, next) {
			t.Errorf("meaningful change not published: %+v", next)
		}
	}
}
