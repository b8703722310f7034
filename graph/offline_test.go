package graph_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mitchellfyi/lofield/graph"
)

func TestOfflineRenderFiresScheduledCallbacks(t *testing.T) {
	octx := graph.NewOfflineContext(1, 8000)
	defer octx.Dispose()
	tr := octx.Transport()

	var onceAt []float64
	tr.ScheduleOnce(0.5, func(s float64) { onceAt = append(onceAt, s) })

	var values []any
	seq, err := graph.NewSequence(tr, func(_ float64, v any) { values = append(values, v) }, []any{"a", "b", "c"}, "4n")
	if err != nil {
		t.Fatalf("NewSequence failed: %v", err)
	}
	seq.Start(0)
	tr.Start()

	channels, err := octx.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(channels) != 2 || len(channels[0]) != 8000 || len(channels[1]) != 8000 {
		t.Fatalf("unexpected channel layout: %v channels", len(channels))
	}
	if len(onceAt) != 1 || math.Abs(onceAt[0]-0.5) > 1e-9 {
		t.Errorf("one-shot fired at %v, want [0.5]", onceAt)
	}
	// a quarter note at the default 84 bpm is ~0.714s, so one second holds
	// two sequence steps
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Errorf("sequence values: got %v, want [a b]", values)
	}

	if _, err := octx.Render(); err == nil {
		t.Error("second Render should fail")
	}
	octx.Dispose()
	octx.Dispose() // idempotent
}

func TestOfflinePositionAdvances(t *testing.T) {
	octx := graph.NewOfflineContext(1, 8000)
	defer octx.Dispose()
	tr := octx.Transport()
	tr.Start()
	if _, err := octx.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := tr.Seconds(); math.Abs(got-1) > 1e-9 {
		t.Errorf("transport seconds after render: got %v, want 1", got)
	}
	// one second at 84 bpm is 1.4 quarters into the first bar
	if pos := tr.Position(); !strings.HasPrefix(pos, "0:1:") {
		t.Errorf("position after render: got %q, want 0:1:...", pos)
	}
}

func TestStoppedTransportHoldsPosition(t *testing.T) {
	octx := graph.NewOfflineContext(0.25, 8000)
	defer octx.Dispose()
	tr := octx.Transport()
	fired := false
	tr.ScheduleOnce(0.1, func(float64) { fired = true })
	if _, err := octx.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if fired {
		t.Error("callback fired while the transport was stopped")
	}
	if tr.Seconds() != 0 {
		t.Errorf("stopped transport advanced to %v", tr.Seconds())
	}
}

func TestPatternRandomAndModes(t *testing.T) {
	octx := graph.NewOfflineContext(1, 8000)
	defer octx.Dispose()
	tr := octx.Transport()
	if _, err := graph.NewPattern(tr, func(float64, any) {}, []any{1.0}, "8n", "sideways"); err == nil {
		t.Error("unsupported pattern mode should fail")
	}
	var values []any
	pat, err := graph.NewPattern(tr, func(_ float64, v any) { values = append(values, v) }, []any{1.0, 2.0}, "random", "random")
	if err == nil {
		// "random" is not a subdivision; the mode belongs in the last slot
		t.Error("swapped pattern arguments should fail")
		_ = pat
	}
	pat, err = graph.NewPattern(tr, func(_ float64, v any) { values = append(values, v) }, []any{1.0, 2.0}, "8n", "random")
	if err != nil {
		t.Fatalf("NewPattern failed: %v", err)
	}
	pat.Start(0)
	tr.Start()
	if _, err := octx.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(values) == 0 {
		t.Fatal("random pattern never fired")
	}
	for _, v := range values {
		if v != 1.0 && v != 2.0 {
			t.Errorf("random pattern produced %v", v)
		}
	}
}

func TestSequencerStopAndDispose(t *testing.T) {
	octx := graph.NewOfflineContext(1, 8000)
	defer octx.Dispose()
	tr := octx.Transport()
	fires := 0
	loop, err := graph.NewLoop(tr, func(float64, any) { fires++ }, "4n")
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}
	loop.Start(0)
	loop.Stop()
	tr.Start()
	if _, err := octx.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if fires != 0 {
		t.Errorf("stopped loop fired %v times", fires)
	}
	loop.Dispose()
	loop.Start(0) // disposed sequencers stay silent
	loop.Dispose()
}

func TestReverbReadiness(t *testing.T) {
	r := graph.NewReverb(8000, 0.3)
	select {
	case <-r.Ready():
	case <-time.After(10 * time.Second):
		t.Fatal("reverb precompute never finished")
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reverb precompute failed: %v", err)
	}
	r.Dispose()
}

func TestPolySynthRendersAudio(t *testing.T) {
	octx := graph.NewOfflineContext(1, 8000)
	defer octx.Dispose()
	s := graph.NewPolySynth(8000, octx.Transport(), graph.SynthOptions{Oscillator: "sine", Volume: 0.5})
	defer s.Dispose()
	s.TriggerAttackRelease(440, 0.5, 0) // transport stopped, triggers immediately
	left := make([]float32, 512)
	right := make([]float32, 512)
	s.Process(left, right)
	var peak float32
	for _, v := range left {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		t.Fatal("triggered synth produced silence")
	}
	if left[100] != right[100] {
		t.Error("mono voice should render identically to both channels")
	}
}
