package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/graph"
	"github.com/mitchellfyi/lofield/script"
)

// automation changes glide over this ramp instead of jumping
const automationRamp = 0.05

// RenderOptions configure an offline render.
type RenderOptions struct {
	Format          string // lofield.FormatWav is the only supported format
	DurationSeconds float64
	SampleRate      int // 0 means 44100
	Recording       *lofield.Recording
	Progress        func(lofield.ExportProgress)
}

// automationTargets are the well-known effect roles a recording can tweak:
// the first constructed instance of each role.
type automationTargets struct {
	filter *graph.Filter
	reverb *graph.Reverb
	delay  *graph.FeedbackDelay
}

// Render re-executes a performance program inside a faster-than-realtime
// context, replays the recorded automation timeline against it, and encodes
// the result. Everything the program constructs is disposed before Render
// returns, render failure included.
func Render(src string, opts RenderOptions) ([]byte, error) {
	if opts.Format != lofield.FormatWav {
		return nil, fmt.Errorf("%w: %q", lofield.ErrUnsupportedFormat, opts.Format)
	}
	if opts.DurationSeconds <= 0 {
		return nil, errors.New("render duration must be positive")
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	report := func(phase lofield.ExportPhase, percent int, message string) {
		if opts.Progress != nil {
			opts.Progress(lofield.ExportProgress{Phase: phase, Percent: percent, Message: message})
		}
	}
	report(lofield.ExportPreparing, 0, "preparing render")

	octx := graph.NewOfflineContext(opts.DurationSeconds, sampleRate)
	defer octx.Dispose()
	res := &Resources{}
	defer func() { disposeAll(res.Items()) }()

	ns := TrackNamespace(Namespace(octx), res)
	globals := map[string]script.Value{
		// visualization is irrelevant offline, but a program that was saved
		// instrumented must still run
		TriggerHookName: script.NativeFunc(func([]script.Value) (script.Value, error) {
			return nil, nil
		}),
	}
	if err := script.EvalBody(src, ParamName, ns, globals); err != nil {
		return nil, fmt.Errorf("evaluating program: %w", err)
	}
	if err := awaitReady(res.Items(), readinessTimeout); err != nil {
		return nil, err
	}

	t := octx.Transport()
	t.ResetPosition()
	if opts.Recording != nil {
		scheduleAutomation(t, opts.Recording, findTargets(res.Items()))
	}
	t.ScheduleOnce(opts.DurationSeconds, func(float64) { t.Stop() })
	t.Start()

	report(lofield.ExportRendering, 25, "rendering audio")
	channels, err := octx.Render()
	if err != nil {
		return nil, err
	}

	report(lofield.ExportEncoding, 80, "encoding wav")
	blob, err := lofield.Wav(channels, sampleRate)
	if err != nil {
		return nil, err
	}
	report(lofield.ExportComplete, 100, "done")
	return blob, nil
}

// findTargets remembers the first constructed instance of each automatable
// effect role, in construction order.
func findTargets(disposables []Disposable) automationTargets {
	var targets automationTargets
	for _, d := range disposables {
		switch o := d.(type) {
		case *filterObj:
			if targets.filter == nil {
				targets.filter = o.f
			}
		case *reverbObj:
			if targets.reverb == nil {
				targets.reverb = o.r
			}
		case *delayObj:
			if targets.delay == nil {
				targets.delay = o.d
			}
		}
	}
	return targets
}

// scheduleAutomation places every usable recording event on the offline
// transport in timestamp order. Events without a param, with a non-tweak
// type or with a non-numeric value are skipped up front.
func scheduleAutomation(t *graph.Transport, rec *lofield.Recording, targets automationTargets) {
	events := append([]lofield.RecordingEvent(nil), rec.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TimestampMs < events[j].TimestampMs
	})
	for _, e := range events {
		if e.Type != lofield.EventTweak || e.Param == "" {
			continue
		}
		value, ok := e.NumericNew()
		if !ok {
			continue
		}
		event := e
		t.ScheduleOnce(float64(e.TimestampMs)/1000, func(float64) {
			applyAutomation(t, event, value, targets)
		})
	}
}

func applyAutomation(t *graph.Transport, e lofield.RecordingEvent, value float64, targets automationTargets) {
	switch e.Param {
	case lofield.ParamBPM:
		// retiming the transport mid-render would desynchronize everything
		// already scheduled
		slog.Warn("skipping unsupported bpm automation", "timestampMs", e.TimestampMs, "value", value)
	case lofield.ParamSwing:
		t.SetSwing(value)
	case lofield.ParamFilter:
		if targets.filter != nil {
			targets.filter.SetFrequency(value, automationRamp)
		}
	case lofield.ParamReverb:
		if targets.reverb != nil {
			targets.reverb.SetWet(value, automationRamp)
		}
	case lofield.ParamDelay:
		if targets.delay != nil {
			targets.delay.SetWet(value, automationRamp)
		}
	default:
		slog.Warn("skipping unknown automation param", "param", e.Param)
	}
}
