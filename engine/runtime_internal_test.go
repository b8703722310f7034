package engine

import (
	"testing"
	"time"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/script"
)

type silentSink struct{}

func (silentSink) WriteAudio([]float32) error {
	time.Sleep(time.Millisecond)
	return nil
}
func (silentSink) Close() error { return nil }

type silentAudio struct{}

func (silentAudio) Output() lofield.AudioSink { return silentSink{} }
func (silentAudio) Close() error              { return nil }

type countedVoice struct {
	disposed int
}

func (v *countedVoice) Dispose() { v.disposed++ }

// countingRuntime builds a runtime whose namespace exposes a single Voice
// constructor, so every object a program constructs is observable.
func countingRuntime(made *[]*countedVoice) *Runtime {
	rt := NewRuntime(func(int) (lofield.AudioContext, error) {
		return silentAudio{}, nil
	}, NewBridge(time.Now))
	rt.namespace = func(GraphContext) *script.Dict {
		return &script.Dict{Entries: map[string]script.Value{
			"Voice": script.NativeFunc(func([]script.Value) (script.Value, error) {
				v := &countedVoice{}
				*made = append(*made, v)
				return v, nil
			}),
		}}
	}
	return rt
}

func TestStopDisposesSessionObjectsExactlyOnce(t *testing.T) {
	var made []*countedVoice
	rt := countingRuntime(&made)
	defer rt.Reset()

	if err := rt.Play("const a = new Tone.Voice();\nconst b = new Tone.Voice();"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(made) != 2 {
		t.Fatalf("constructed %v objects, want 2", len(made))
	}
	first := append([]*countedVoice(nil), made...)
	for i, v := range first {
		if v.disposed != 0 {
			t.Fatalf("object %v disposed while still playing", i)
		}
	}

	rt.Stop()
	for i, v := range first {
		if v.disposed != 1 {
			t.Errorf("object %v disposed %v times after stop, want 1", i, v.disposed)
		}
	}
	rt.Stop() // redundant stop must not re-dispose
	for i, v := range first {
		if v.disposed != 1 {
			t.Errorf("object %v re-disposed by redundant stop: %v", i, v.disposed)
		}
	}
}

func TestStopOnlyTouchesItsOwnSession(t *testing.T) {
	var made []*countedVoice
	rt := countingRuntime(&made)
	defer rt.Reset()

	if err := rt.Play("const a = new Tone.Voice();"); err != nil {
		t.Fatalf("first Play failed: %v", err)
	}
	rt.Stop()
	first := made[0]
	if first.disposed != 1 {
		t.Fatalf("first-session object disposed %v times, want 1", first.disposed)
	}

	if err := rt.Play("const b = new Tone.Voice();\nconst c = new Tone.Voice();"); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}
	rt.Stop()
	if first.disposed != 1 {
		t.Errorf("later stop touched a previous session's object: disposed %v times", first.disposed)
	}
	for i, v := range made[1:] {
		if v.disposed != 1 {
			t.Errorf("second-session object %v disposed %v times, want 1", i, v.disposed)
		}
	}
}
