package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mitchellfyi/lofield/graph"
	"github.com/mitchellfyi/lofield/script"
)

// GraphContext is the slice of a rendering context the script namespace
// needs; both the realtime and the offline context satisfy it. Binding the
// namespace to a context at construction time is what keeps offline
// evaluation from leaking into the live output.
type GraphContext interface {
	SampleRate() int
	Transport() *graph.Transport
	Destination() *graph.Destination
}

// Namespace builds the object a performance program receives as its sole
// parameter: instrument and effect constructors, the sequencing
// constructors, and the transport and destination of the bound context.
// Programs get no other way to reach the host.
func Namespace(ctx GraphContext) *script.Dict {
	t := ctx.Transport()
	return &script.Dict{Entries: map[string]script.Value{
		"PolySynth":     synthCtor(ctx, false),
		"MonoSynth":     synthCtor(ctx, true),
		"NoiseSynth":    noiseCtor(ctx),
		"Filter":        filterCtor(ctx),
		"Reverb":        reverbCtor(ctx),
		"FeedbackDelay": delayCtor(ctx),
		"Gain":          gainCtor(ctx),
		"Sequence":      sequenceCtor(ctx),
		"Pattern":       patternCtor(ctx),
		"Loop":          loopCtor(ctx),
		"Transport":     &transportObj{t: t},
		"Destination":   &destObj{d: ctx.Destination()},
		"now": script.NativeFunc(func([]script.Value) (script.Value, error) {
			return t.Seconds(), nil
		}),
	}}
}

// sinkProvider is implemented by adapters whose node can accept routed
// audio.
type sinkProvider interface {
	sink() graph.Sink
}

// nodeMembers implements the members every audio node shares. self is the
// adapter itself, returned from connect calls for chaining.
func nodeMembers(self script.Value, ctx GraphContext, n graph.Node, name string) (script.Value, bool) {
	switch name {
	case "connect":
		return script.NativeFunc(func(args []script.Value) (script.Value, error) {
			if len(args) == 0 {
				return nil, errors.New("connect needs a target")
			}
			sp, ok := args[0].(sinkProvider)
			if !ok {
				return nil, errors.New("connect target cannot accept audio")
			}
			graph.Connect(n, sp.sink())
			return self, nil
		}), true
	case "toDestination":
		return script.NativeFunc(func([]script.Value) (script.Value, error) {
			graph.Connect(n, ctx.Destination())
			return self, nil
		}), true
	case "dispose":
		return script.NativeFunc(func([]script.Value) (script.Value, error) {
			n.Dispose()
			return nil, nil
		}), true
	}
	return nil, false
}

// numParam exposes a ramping node parameter to scripts as the usual
// value/rampTo pair.
type numParam struct {
	get  func() float64
	ramp func(target, seconds float64)
}

func (p *numParam) Member(name string) (script.Value, bool) {
	switch name {
	case "value":
		return p.get(), true
	case "rampTo":
		return script.NativeFunc(func(args []script.Value) (script.Value, error) {
			if len(args) == 0 {
				return nil, errors.New("rampTo needs a target value")
			}
			target, ok := script.Number(args[0])
			if !ok {
				return nil, errors.New("rampTo target must be a number")
			}
			seconds := 0.0
			if len(args) > 1 {
				if s, ok := script.Number(args[1]); ok {
					seconds = s
				}
			}
			p.ramp(target, seconds)
			return nil, nil
		}), true
	}
	return nil, false
}

func (p *numParam) SetMember(name string, v script.Value) error {
	if name != "value" {
		return fmt.Errorf("parameter member %q is not assignable", name)
	}
	n, ok := script.Number(v)
	if !ok {
		return errors.New("parameter value must be a number")
	}
	p.ramp(n, 0)
	return nil
}

type (
	synthObj struct {
		ctx GraphContext
		s   *graph.PolySynth
	}
	noiseObj struct {
		ctx GraphContext
		n   *graph.NoiseSynth
	}
	filterObj struct {
		ctx GraphContext
		f   *graph.Filter
	}
	reverbObj struct {
		ctx GraphContext
		r   *graph.Reverb
	}
	delayObj struct {
		ctx GraphContext
		d   *graph.FeedbackDelay
	}
	gainObj struct {
		ctx GraphContext
		g   *graph.Gain
	}
	seqObj struct {
		t *graph.Transport
		s *graph.Sequencer
	}
	transportObj struct {
		t *graph.Transport
	}
	destObj struct {
		d *graph.Destination
	}
)

func (o *synthObj) Dispose() { o.s.Dispose() }

func (o *synthObj) Member(name string) (script.Value, bool) {
	if name == "triggerAttackRelease" {
		return script.NativeFunc(func(args []script.Value) (script.Value, error) {
			if len(args) < 2 {
				return nil, errors.New("triggerAttackRelease needs a note and a duration")
			}
			freq, err := noteFrequency(args[0])
			if err != nil {
				return nil, err
			}
			dur, err := graph.TimeToSeconds(args[1], o.ctx.Transport().BPM())
			if err != nil {
				return nil, err
			}
			o.s.TriggerAttackRelease(freq, dur, argSeconds(args, 2, o.ctx.Transport()))
			return nil, nil
		}), true
	}
	return nodeMembers(o, o.ctx, o.s, name)
}

func (o *noiseObj) Dispose() { o.n.Dispose() }

func (o *noiseObj) Member(name string) (script.Value, bool) {
	if name == "triggerAttackRelease" {
		return script.NativeFunc(func(args []script.Value) (script.Value, error) {
			if len(args) < 1 {
				return nil, errors.New("triggerAttackRelease needs a duration")
			}
			dur, err := graph.TimeToSeconds(args[0], o.ctx.Transport().BPM())
			if err != nil {
				return nil, err
			}
			o.n.TriggerAttackRelease(dur, argSeconds(args, 1, o.ctx.Transport()))
			return nil, nil
		}), true
	}
	return nodeMembers(o, o.ctx, o.n, name)
}

func (o *filterObj) Dispose()         { o.f.Dispose() }
func (o *filterObj) sink() graph.Sink { return o.f }

func (o *filterObj) Member(name string) (script.Value, bool) {
	if name == "frequency" {
		return &numParam{get: o.f.Frequency, ramp: o.f.SetFrequency}, true
	}
	return nodeMembers(o, o.ctx, o.f, name)
}

func (o *reverbObj) Dispose()               { o.r.Dispose() }
func (o *reverbObj) sink() graph.Sink       { return o.r }
func (o *reverbObj) Ready() <-chan struct{} { return o.r.Ready() }
func (o *reverbObj) Err() error             { return o.r.Err() }

func (o *reverbObj) Member(name string) (script.Value, bool) {
	if name == "wet" {
		return &numParam{get: o.r.Wet, ramp: o.r.SetWet}, true
	}
	return nodeMembers(o, o.ctx, o.r, name)
}

func (o *delayObj) Dispose()         { o.d.Dispose() }
func (o *delayObj) sink() graph.Sink { return o.d }

func (o *delayObj) Member(name string) (script.Value, bool) {
	switch name {
	case "wet":
		return &numParam{get: o.d.Wet, ramp: o.d.SetWet}, true
	case "feedback":
		return &numParam{get: o.d.Feedback, ramp: o.d.SetFeedback}, true
	}
	return nodeMembers(o, o.ctx, o.d, name)
}

func (o *gainObj) Dispose()         { o.g.Dispose() }
func (o *gainObj) sink() graph.Sink { return o.g }

func (o *gainObj) Member(name string) (script.Value, bool) {
	if name == "gain" {
		ramp := func(target, seconds float64) {
			o.g.SetGain(target, seconds, o.ctx.SampleRate())
		}
		return &numParam{get: o.g.Gain, ramp: ramp}, true
	}
	return nodeMembers(o, o.ctx, o.g, name)
}

func (o *seqObj) Dispose() { o.s.Dispose() }

func (o *seqObj) Member(name string) (script.Value, bool) {
	switch name {
	case "start":
		return script.NativeFunc(func(args []script.Value) (script.Value, error) {
			offset := 0.0
			if len(args) > 0 && args[0] != nil {
				var err error
				if offset, err = graph.TimeToSeconds(args[0], o.t.BPM()); err != nil {
					return nil, err
				}
			}
			o.s.Start(offset)
			return nil, nil
		}), true
	case "stop":
		return script.NativeFunc(func([]script.Value) (script.Value, error) {
			o.s.Stop()
			return nil, nil
		}), true
	case "dispose":
		return script.NativeFunc(func([]script.Value) (script.Value, error) {
			o.s.Dispose()
			return nil, nil
		}), true
	}
	return nil, false
}

func (o *transportObj) Member(name string) (script.Value, bool) {
	switch name {
	case "bpm":
		return &numParam{
			get:  o.t.BPM,
			ramp: func(target, _ float64) { o.t.SetBPM(target) },
		}, true
	case "swing":
		return o.t.Swing(), true
	case "position":
		return o.t.Position(), true
	case "seconds":
		return o.t.Seconds(), true
	case "start":
		return script.NativeFunc(func([]script.Value) (script.Value, error) {
			o.t.Start()
			return nil, nil
		}), true
	case "stop":
		return script.NativeFunc(func([]script.Value) (script.Value, error) {
			o.t.Stop()
			return nil, nil
		}), true
	}
	return nil, false
}

func (o *transportObj) SetMember(name string, v script.Value) error {
	n, ok := script.Number(v)
	if !ok {
		return fmt.Errorf("transport %s must be a number", name)
	}
	switch name {
	case "swing":
		o.t.SetSwing(n)
		return nil
	case "bpm":
		o.t.SetBPM(n)
		return nil
	}
	return fmt.Errorf("transport member %q is not assignable", name)
}

func (o *destObj) sink() graph.Sink { return o.d }

func (o *destObj) Member(string) (script.Value, bool) { return nil, false }

func synthCtor(ctx GraphContext, mono bool) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		opts := parseSynthOptions(argDict(args, 0))
		var s *graph.PolySynth
		if mono {
			s = graph.NewMonoSynth(ctx.SampleRate(), ctx.Transport(), opts)
		} else {
			s = graph.NewPolySynth(ctx.SampleRate(), ctx.Transport(), opts)
		}
		return &synthObj{ctx: ctx, s: s}, nil
	}
}

func noiseCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		volume := 0.0
		if n, ok := argNumber(args, 0); ok {
			volume = n
		} else if d := argDict(args, 0); d != nil {
			volume = optNumber(d, "volume", 0)
		}
		return &noiseObj{ctx: ctx, n: graph.NewNoiseSynth(ctx.SampleRate(), ctx.Transport(), volume)}, nil
	}
}

func filterCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		frequency, kind, q := 800.0, "lowpass", 0.0
		if d := argDict(args, 0); d != nil {
			frequency = optNumber(d, "frequency", frequency)
			kind = optString(d, "type", kind)
			q = optNumber(d, "Q", 0)
		} else {
			if n, ok := argNumber(args, 0); ok {
				frequency = n
			}
			if s, ok := argString(args, 1); ok {
				kind = s
			}
		}
		return &filterObj{ctx: ctx, f: graph.NewFilter(ctx.SampleRate(), kind, frequency, q)}, nil
	}
}

func reverbCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		decay, wet := 0.0, -1.0
		if d := argDict(args, 0); d != nil {
			decay = optNumber(d, "decay", 0)
			wet = optNumber(d, "wet", -1)
		} else if n, ok := argNumber(args, 0); ok {
			decay = n
		}
		r := graph.NewReverb(ctx.SampleRate(), decay)
		if wet >= 0 {
			r.SetWet(wet, 0)
		}
		return &reverbObj{ctx: ctx, r: r}, nil
	}
}

func delayCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		var delayTime script.Value = 0.25
		feedback, wet := 0.4, -1.0
		if d := argDict(args, 0); d != nil {
			if v, ok := d.Entries["delayTime"]; ok {
				delayTime = v
			}
			feedback = optNumber(d, "feedback", feedback)
			wet = optNumber(d, "wet", -1)
		} else {
			if len(args) > 0 && args[0] != nil {
				delayTime = args[0]
			}
			if n, ok := argNumber(args, 1); ok {
				feedback = n
			}
		}
		seconds, err := graph.TimeToSeconds(delayTime, ctx.Transport().BPM())
		if err != nil {
			return nil, err
		}
		d := graph.NewFeedbackDelay(ctx.SampleRate(), seconds, feedback)
		if wet >= 0 {
			d.SetWet(wet, 0)
		}
		return &delayObj{ctx: ctx, d: d}, nil
	}
}

func gainCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		level := 1.0
		if n, ok := argNumber(args, 0); ok {
			level = n
		}
		return &gainObj{ctx: ctx, g: graph.NewGain(level)}, nil
	}
}

func sequenceCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		cb, values, err := sequencingArgs(args, "Sequence")
		if err != nil {
			return nil, err
		}
		sub := "8n"
		if s, ok := argString(args, 2); ok {
			sub = s
		}
		t := ctx.Transport()
		seq, err := graph.NewSequence(t, callbackBridge(cb), values, sub)
		if err != nil {
			return nil, err
		}
		return &seqObj{t: t, s: seq}, nil
	}
}

func patternCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		cb, values, err := sequencingArgs(args, "Pattern")
		if err != nil {
			return nil, err
		}
		mode := "up"
		if s, ok := argString(args, 2); ok {
			mode = s
		}
		sub := "8n"
		if s, ok := argString(args, 3); ok {
			sub = s
		}
		t := ctx.Transport()
		seq, err := graph.NewPattern(t, callbackBridge(cb), values, sub, mode)
		if err != nil {
			return nil, err
		}
		return &seqObj{t: t, s: seq}, nil
	}
}

func loopCtor(ctx GraphContext) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		if len(args) < 1 {
			return nil, errors.New("Loop needs a callback")
		}
		cb, ok := args[0].(script.Callable)
		if !ok {
			return nil, errors.New("Loop callback must be a function")
		}
		var interval script.Value = "4n"
		if len(args) > 1 && args[1] != nil {
			interval = args[1]
		}
		t := ctx.Transport()
		seq, err := graph.NewLoop(t, callbackBridge(cb), interval)
		if err != nil {
			return nil, err
		}
		return &seqObj{t: t, s: seq}, nil
	}
}

func sequencingArgs(args []script.Value, ctor string) (script.Callable, []any, error) {
	if len(args) < 2 {
		return nil, nil, fmt.Errorf("%s needs a callback and a value list", ctor)
	}
	cb, ok := args[0].(script.Callable)
	if !ok {
		return nil, nil, fmt.Errorf("%s callback must be a function", ctor)
	}
	arr, ok := args[1].(*script.Array)
	if !ok {
		return nil, nil, fmt.Errorf("%s values must be an array", ctor)
	}
	return cb, append([]any(nil), arr.Elems...), nil
}

// callbackBridge adapts a script callback for the transport scheduler.
// Callback failures have no caller to propagate to, so they are logged.
func callbackBridge(cb script.Callable) func(float64, any) {
	return func(seconds float64, value any) {
		if _, err := cb.Call([]script.Value{seconds, value}); err != nil {
			slog.Error("sequencer callback failed", "error", err)
		}
	}
}

// noteFrequency resolves a pitch argument: a note name string or a
// frequency in Hz.
func noteFrequency(v script.Value) (float64, error) {
	if s, ok := v.(string); ok {
		return graph.NoteToFreq(s)
	}
	if n, ok := script.Number(v); ok {
		return n, nil
	}
	return 0, fmt.Errorf("invalid note %v", v)
}

// argSeconds reads an optional schedule-time argument, defaulting to the
// current transport time.
func argSeconds(args []script.Value, i int, t *graph.Transport) float64 {
	if n, ok := argNumber(args, i); ok {
		return n
	}
	return t.Seconds()
}

func argNumber(args []script.Value, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return script.Number(args[i])
}

func argString(args []script.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

func argDict(args []script.Value, i int) *script.Dict {
	if i >= len(args) {
		return nil
	}
	d, _ := args[i].(*script.Dict)
	return d
}

func optNumber(d *script.Dict, key string, def float64) float64 {
	if v, ok := d.Entries[key]; ok {
		if n, ok := script.Number(v); ok {
			return n
		}
	}
	return def
}

func optString(d *script.Dict, key, def string) string {
	if v, ok := d.Entries[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// parseSynthOptions accepts both the flat and the nested option shapes:
// oscillator may be a string or an object with a type member, envelope may
// be inlined or nested.
func parseSynthOptions(d *script.Dict) graph.SynthOptions {
	var opts graph.SynthOptions
	if d == nil {
		return opts
	}
	opts.Voices = int(optNumber(d, "voices", 0))
	opts.Volume = optNumber(d, "volume", 0)
	switch osc := d.Entries["oscillator"].(type) {
	case string:
		opts.Oscillator = osc
	case *script.Dict:
		opts.Oscillator = optString(osc, "type", "")
	}
	env := d
	if nested, ok := d.Entries["envelope"].(*script.Dict); ok {
		env = nested
	}
	opts.Attack = optNumber(env, "attack", 0)
	opts.Decay = optNumber(env, "decay", 0)
	opts.Sustain = optNumber(env, "sustain", 0)
	opts.Release = optNumber(env, "release", 0)
	return opts
}
