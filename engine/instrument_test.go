package engine_test

import (
	"strings"
	"testing"

	"github.com/mitchellfyi/lofield/engine"
)

func TestInstrumentBlockBody(t *testing.T) {
	src := strings.Join([]string{
		`const synth = new Tone.PolySynth().toDestination();`,
		`const seq = new Tone.Sequence((time, note) => {`,
		`  synth.triggerAttackRelease(note, "8n", time);`,
		`}, ["C4", "E4", "G4"], "8n");`,
	}, "\n")
	out := engine.Instrument(src)
	want := `new Tone.Sequence((time, note) => { __trigger(2, note, "note");`
	if !strings.Contains(out, want) {
		t.Errorf("block-body injection missing:\n%v", out)
	}
	if got := strings.Count(out, "__trigger("); got != 1 {
		t.Errorf("trigger call sites: got %v, want 1", got)
	}
}

func TestInstrumentExpressionBodyPreservesContent(t *testing.T) {
	src := `const pat = new Tone.Pattern((t, v) => v && x.fn(v), ["A2"], "up");`
	out := engine.Instrument(src)
	want := `{ __trigger(1, v, "note"); v && x.fn(v); }, ["A2"], "up");`
	if !strings.Contains(out, want) {
		t.Errorf("expression-body rewrite wrong:\ngot  %v\nwant substring %v", out, want)
	}
}

func TestInstrumentSingleParameterGetsNull(t *testing.T) {
	src := `const loop = new Tone.Loop((t) => hat.triggerAttackRelease("16n", t), "4n");`
	out := engine.Instrument(src)
	want := `{ __trigger(1, null, "note"); hat.triggerAttackRelease("16n", t); }, "4n");`
	if !strings.Contains(out, want) {
		t.Errorf("single-parameter rewrite wrong:\ngot  %v\nwant substring %v", out, want)
	}
}

func TestInstrumentLineNumbersMatchOriginalText(t *testing.T) {
	src := strings.Join([]string{
		`const a = new Tone.Loop((t) => kick.hit(t), "4n");`,
		`const unrelated = 1;`,
		``,
		`const b = new Tone.Sequence((t, n) => {`,
		`  s.triggerAttackRelease(n, "8n", t);`,
		`}, notes, "8n");`,
		`const c = new Tone.Pattern((t, v) => p.play(v), vals, "up");`,
	}, "\n")
	out := engine.Instrument(src)
	for _, want := range []string{"__trigger(1, null,", "__trigger(4, n,", "__trigger(7, v,"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %v in:\n%v", want, out)
		}
	}
	if got := strings.Count(out, "__trigger("); got != 3 {
		t.Errorf("trigger call sites: got %v, want 3", got)
	}
	// untouched lines pass through verbatim
	if !strings.Contains(out, "const unrelated = 1;") {
		t.Errorf("unmatched line was modified:\n%v", out)
	}
	if len(strings.Split(out, "\n")) != len(strings.Split(src, "\n")) {
		t.Errorf("instrumentation changed the line count")
	}
}

func TestInstrumentStringAwareScanning(t *testing.T) {
	src := `const l = new Tone.Loop((t) => say("a, b) {", t), "8n");`
	out := engine.Instrument(src)
	want := `{ __trigger(1, null, "note"); say("a, b) {", t); }, "8n");`
	if !strings.Contains(out, want) {
		t.Errorf("string-aware cut wrong:\ngot  %v\nwant substring %v", out, want)
	}
}

func TestInstrumentIgnoresCommentsAndStrings(t *testing.T) {
	src := strings.Join([]string{
		`// const old = new Tone.Loop((t) => kick.hit(t), "4n");`,
		`/*`,
		`const dead = new Tone.Sequence((t, n) => s.play(n), notes, "8n");`,
		`*/`,
		`const label = "new Tone.Pattern((t, v) => v, vals, 'up')";`,
		"const tpl = `",
		`new Tone.Loop((t) => kick.hit(t), "4n")`,
		"`;",
		`const live = new Tone.Loop((t) => kick.hit(t), "4n");`,
	}, "\n")
	out := engine.Instrument(src)
	if got := strings.Count(out, "__trigger("); got != 1 {
		t.Fatalf("trigger call sites: got %v, want 1:\n%v", got, out)
	}
	if !strings.Contains(out, "__trigger(9, null,") {
		t.Errorf("live construction not instrumented:\n%v", out)
	}
	// everything commented or quoted passes through verbatim
	for _, line := range strings.Split(src, "\n")[:8] {
		if !strings.Contains(out, line) {
			t.Errorf("non-code line was modified: %q\n%v", line, out)
		}
	}
}

func TestInstrumentPassesMalformedInputThrough(t *testing.T) {
	for _, src := range []string{
		"",
		"not even a program (((",
		"const x = Sequence;",
		"Sequence(values, \"8n\");",
	} {
		if got := engine.Instrument(src); got != src {
			t.Errorf("Instrument(%q) modified input: %q", src, got)
		}
	}
}
