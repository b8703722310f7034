package engine_test

import (
	"strings"
	"testing"
	"time"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/engine"
)

type (
	nullSink  struct{}
	nullAudio struct{}
)

func (nullSink) WriteAudio([]float32) error {
	// pace the render pump a little so tests do not spin
	time.Sleep(time.Millisecond)
	return nil
}
func (nullSink) Close() error               { return nil }
func (nullAudio) Output() lofield.AudioSink { return nullSink{} }
func (nullAudio) Close() error              { return nil }

func newTestRuntime() *engine.Runtime {
	newAudio := func(int) (lofield.AudioContext, error) { return nullAudio{}, nil }
	return engine.NewRuntime(newAudio, engine.NewBridge(time.Now))
}

const testProgram = `
const synth = new Tone.PolySynth({ oscillator: "sine", volume: 0.3 }).toDestination();
const loop = new Tone.Loop((t) => synth.triggerAttackRelease("C4", "8n", t), "4n");
loop.start(0);
`

func TestRuntimeLifecycle(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	if rt.State() != lofield.StateIdle {
		t.Fatalf("fresh runtime state: got %v, want idle", rt.State())
	}
	if err := rt.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if rt.State() != lofield.StateReady {
		t.Fatalf("state after Init: got %v, want ready", rt.State())
	}
	if err := rt.Play(testProgram); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if rt.State() != lofield.StatePlaying {
		t.Fatalf("state after Play: got %v, want playing", rt.State())
	}
	rt.Stop()
	if rt.State() != lofield.StateReady {
		t.Fatalf("state after Stop: got %v, want ready", rt.State())
	}
	rt.Reset()
	if rt.State() != lofield.StateIdle {
		t.Fatalf("state after Reset: got %v, want idle", rt.State())
	}
}

func TestPlayAutoInits(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	if err := rt.Play(testProgram); err != nil {
		t.Fatalf("Play from idle failed: %v", err)
	}
	if rt.State() != lofield.StatePlaying {
		t.Fatalf("state: got %v, want playing", rt.State())
	}
}

func TestStopIsAlwaysSafe(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	rt.Stop() // before Init
	if rt.State() != lofield.StateIdle {
		t.Fatalf("Stop before Init: got %v, want idle", rt.State())
	}
	if err := rt.Play(testProgram); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	rt.Stop()
	rt.Stop() // redundant
	if rt.State() != lofield.StateReady {
		t.Fatalf("redundant Stop: got %v, want ready", rt.State())
	}
}

func TestEvalFailureEntersErrorState(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	err := rt.Play(`const broken = (;`)
	if err == nil {
		t.Fatal("expected Play to fail")
	}
	if rt.State() != lofield.StateError {
		t.Fatalf("state after eval failure: got %v, want error", rt.State())
	}
	foundFail := false
	for _, e := range rt.Events() {
		if e.Kind == "eval_fail" {
			foundFail = true
		}
	}
	if !foundFail {
		t.Error("eval_fail event not logged")
	}
	// a retry play recovers
	if err := rt.Play(testProgram); err != nil {
		t.Fatalf("retry Play failed: %v", err)
	}
	if rt.State() != lofield.StatePlaying {
		t.Fatalf("state after retry: got %v, want playing", rt.State())
	}
}

func TestEventLogIsBoundedAndNewestFirst(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	for i := 0; i < 8; i++ {
		rt.Stop()
	}
	events := rt.Events()
	if len(events) > 10 {
		t.Fatalf("event log holds %v entries, cap is 10", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].At.After(events[i-1].At) {
			t.Fatalf("event log not newest-first at index %v", i)
		}
	}
}

func TestSubscribeNotifies(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	calls := 0
	unsubscribe := rt.Subscribe(func() { calls++ })
	rt.Stop()
	if calls == 0 {
		t.Fatal("subscriber was not notified")
	}
	seen := calls
	unsubscribe()
	rt.Stop()
	if calls != seen {
		t.Fatal("subscriber notified after unsubscribe")
	}
}

func TestPlayStopsPreviousSession(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	if err := rt.Play(testProgram); err != nil {
		t.Fatalf("first Play failed: %v", err)
	}
	if err := rt.Play(testProgram); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}
	if rt.State() != lofield.StatePlaying {
		t.Fatalf("state: got %v, want playing", rt.State())
	}
	stops := 0
	for _, e := range rt.Events() {
		if e.Kind == "stop" {
			stops++
		}
	}
	if stops == 0 {
		t.Error("second Play did not stop the first session")
	}
}

func TestReadinessGatedEffects(t *testing.T) {
	rt := newTestRuntime()
	defer rt.Reset()
	src := strings.Join([]string{
		`const reverb = new Tone.Reverb({ decay: 0.4, wet: 0.3 }).toDestination();`,
		`const synth = new Tone.PolySynth().connect(reverb);`,
		`const loop = new Tone.Loop((t) => synth.triggerAttackRelease("A3", "8n", t), "2n");`,
		`loop.start(0);`,
	}, "\n")
	if err := rt.Play(src); err != nil {
		t.Fatalf("Play with readiness-gated effect failed: %v", err)
	}
	// Play must not have returned before the reverb finished precomputing,
	// so the state is already playing here
	if rt.State() != lofield.StatePlaying {
		t.Fatalf("state: got %v, want playing", rt.State())
	}
}
