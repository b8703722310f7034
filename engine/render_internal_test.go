package engine

import (
	"math"
	"testing"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/graph"
)

func TestAutomationReplay(t *testing.T) {
	octx := graph.NewOfflineContext(3.5, 8000)
	defer octx.Dispose()
	tr := octx.Transport()
	f := graph.NewFilter(8000, "lowpass", 800, 0)
	graph.Connect(f, octx.Destination())
	targets := automationTargets{filter: f}

	// deliberately unsorted, with events the replayer must skip
	rec := lofield.Recording{
		Events: []lofield.RecordingEvent{
			{ID: "a", TimestampMs: 3000, Type: lofield.EventTweak, Param: lofield.ParamFilter, New: 2000.0},
			{ID: "b", TimestampMs: 1000, Type: lofield.EventTweak, Param: lofield.ParamFilter, New: 500.0},
			{ID: "c", TimestampMs: 1500, Type: lofield.EventTweak, Param: lofield.ParamSwing, New: 0.3},
			{ID: "d", TimestampMs: 2000, Type: lofield.EventTweak, Param: lofield.ParamBPM, New: 140.0},
			{ID: "e", TimestampMs: 2500, Type: lofield.EventTweak, Param: lofield.ParamFilter, New: "fast"},
			{ID: "f", TimestampMs: 2600, Type: lofield.EventLayerMute, LayerID: "drums", New: 1.0},
		},
		DurationMs: 3500,
	}
	scheduleAutomation(tr, &rec, targets)
	tr.Start()
	if _, err := octx.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := f.Frequency(); math.Abs(got-2000) > 1 {
		t.Errorf("filter frequency after replay: got %v, want 2000 (latest tweak wins)", got)
	}
	if got := tr.Swing(); got != 0.3 {
		t.Errorf("swing after replay: got %v, want 0.3", got)
	}
	if got := tr.BPM(); got != graph.DefaultBPM {
		t.Errorf("bpm after replay: got %v, want unchanged %v", got, float64(graph.DefaultBPM))
	}
}

func TestFindTargetsRemembersFirstOfEachRole(t *testing.T) {
	octx := graph.NewOfflineContext(0.1, 8000)
	defer octx.Dispose()
	first := &filterObj{ctx: octx, f: graph.NewFilter(8000, "lowpass", 400, 0)}
	second := &filterObj{ctx: octx, f: graph.NewFilter(8000, "highpass", 900, 0)}
	delay := &delayObj{ctx: octx, d: graph.NewFeedbackDelay(8000, 0.2, 0.3)}
	targets := findTargets([]Disposable{first, second, delay})
	if targets.filter != first.f {
		t.Error("first filter not chosen as automation target")
	}
	if targets.delay != delay.d {
		t.Error("delay not found")
	}
	if targets.reverb != nil {
		t.Error("reverb target invented from nowhere")
	}
}
