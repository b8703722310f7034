package engine_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/engine"
)

func TestRenderRejectsUnknownFormat(t *testing.T) {
	_, err := engine.Render("", engine.RenderOptions{Format: "mp3", DurationSeconds: 1})
	if !errors.Is(err, lofield.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRenderRejectsBadDuration(t *testing.T) {
	_, err := engine.Render("", engine.RenderOptions{Format: lofield.FormatWav})
	if err == nil {
		t.Fatal("expected an error for zero duration")
	}
}

func TestRenderProducesWav(t *testing.T) {
	src := strings.Join([]string{
		`const synth = new Tone.MonoSynth({ oscillator: "square", volume: 0.5 }).toDestination();`,
		`const loop = new Tone.Loop((t) => synth.triggerAttackRelease("A4", 0.2, t), "4n");`,
		`loop.start(0);`,
	}, "\n")
	var phases []lofield.ExportPhase
	var percents []int
	blob, err := engine.Render(src, engine.RenderOptions{
		Format:          lofield.FormatWav,
		DurationSeconds: 0.5,
		SampleRate:      8000,
		Progress: func(p lofield.ExportProgress) {
			phases = append(phases, p.Phase)
			percents = append(percents, p.Percent)
		},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	wantLen := 44 + 4000*2*2
	if len(blob) != wantLen {
		t.Fatalf("blob size: got %v, want %v", len(blob), wantLen)
	}
	if string(blob[:4]) != "RIFF" || string(blob[8:12]) != "WAVE" {
		t.Fatal("blob is not a RIFF/WAVE container")
	}
	silent := true
	for _, v := range blob[44:] {
		if v != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Fatal("render produced only silence")
	}
	wantPhases := []lofield.ExportPhase{
		lofield.ExportPreparing, lofield.ExportRendering, lofield.ExportEncoding, lofield.ExportComplete,
	}
	if len(phases) != len(wantPhases) {
		t.Fatalf("progress phases: got %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase %v: got %v, want %v", i, phases[i], wantPhases[i])
		}
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
		}
	}
}

func TestRenderEvaluationFailure(t *testing.T) {
	_, err := engine.Render("const broken = (;", engine.RenderOptions{
		Format:          lofield.FormatWav,
		DurationSeconds: 0.1,
		SampleRate:      8000,
	})
	if err == nil {
		t.Fatal("expected Render to fail on a broken program")
	}
}
