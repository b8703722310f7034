package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/graph"
	"github.com/mitchellfyi/lofield/oto"
	"github.com/mitchellfyi/lofield/script"
)

const (
	// ParamName is the name a performance program sees its namespace
	// parameter under.
	ParamName = "Tone"

	defaultSampleRate = 44100
	loopBars          = 32
	eventLogCapacity  = 10
	readinessTimeout  = 30 * time.Second
)

// Event is one entry of the runtime's bounded observability log.
type Event struct {
	Kind    string // init, play, stop, eval_ok, eval_fail, error
	At      time.Time
	Message string
}

// Runtime owns the live playback session: the audio output, the realtime
// rendering context, and the set of objects the current program has
// constructed. All mutation happens through Init, Play, Stop and Reset.
type Runtime struct {
	mu        sync.Mutex
	newAudio  func(sampleRate int) (lofield.AudioContext, error)
	bridge    *Bridge
	namespace func(GraphContext) *script.Dict

	state       lofield.RuntimeState
	initialized bool
	audio       lofield.AudioContext
	ctx         *graph.Context
	resources   *Resources
	teardown    func()
	events      []Event // newest first, bounded
	nextSub     int
	subs        map[int]func()
}

var (
	liveRuntime     *Runtime
	liveRuntimeOnce sync.Once
)

// Live returns the process-wide runtime instance, backed by the real audio
// output and the live bridge.
func Live() *Runtime {
	liveRuntimeOnce.Do(func() {
		liveRuntime = NewRuntime(oto.NewContext, LiveBridge())
	})
	return liveRuntime
}

// NewRuntime builds a runtime with an injectable audio backend, so tests
// can run against a silent sink.
func NewRuntime(newAudio func(int) (lofield.AudioContext, error), bridge *Bridge) *Runtime {
	return &Runtime{
		newAudio:  newAudio,
		bridge:    bridge,
		namespace: Namespace,
		subs:      make(map[int]func()),
	}
}

// Init performs the one-time audio unlock handshake and brings the runtime
// to ready. A second Init is a logged no-op.
func (r *Runtime) Init() error {
	r.mu.Lock()
	if r.initialized {
		r.logEventLocked("init", "already initialized")
		r.mu.Unlock()
		r.notify()
		return nil
	}
	r.state = lofield.StateLoading
	r.logEventLocked("init", "unlocking audio output")
	r.mu.Unlock()
	r.notify()

	audio, err := r.newAudio(defaultSampleRate)

	r.mu.Lock()
	if err != nil {
		r.state = lofield.StateError
		r.logEventLocked("error", err.Error())
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("audio init: %w", err)
	}
	r.audio = audio
	r.ctx = graph.NewContext(defaultSampleRate, audio.Output())
	r.ctx.Resume()
	r.initialized = true
	r.state = lofield.StateReady
	r.mu.Unlock()
	r.notify()
	return nil
}

// Play evaluates a performance program and starts playback. Any prior
// session is stopped first. Play does not return, and does not reach the
// playing state, until every readiness-gated tracked object has resolved.
// Evaluation failures leave the runtime in the error state and are returned
// to the caller; the resources of the failed attempt stay tracked until the
// next Stop or Play clears them.
func (r *Runtime) Play(src string) error {
	if err := r.Init(); err != nil {
		return err
	}
	r.Stop()

	r.bridge.Reset()
	r.bridge.Start(r.ctx.Transport())

	instrumented := Instrument(src)
	res := &Resources{}
	ns := TrackNamespace(r.namespace(r.ctx), res)
	globals := map[string]script.Value{
		TriggerHookName: triggerHook(r.bridge),
	}
	err := script.EvalBody(instrumented, ParamName, ns, globals)

	r.mu.Lock()
	r.resources = res
	r.teardown = func() { disposeAll(res.Items()) }
	if err != nil {
		r.state = lofield.StateError
		r.logEventLocked("eval_fail", err.Error())
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("evaluating program: %w", err)
	}
	r.logEventLocked("eval_ok", fmt.Sprintf("%d objects tracked", res.Len()))
	r.mu.Unlock()
	r.notify()

	if err := awaitReady(res.Items(), readinessTimeout); err != nil {
		r.mu.Lock()
		r.state = lofield.StateError
		r.logEventLocked("error", err.Error())
		r.mu.Unlock()
		r.notify()
		return err
	}

	t := r.ctx.Transport()
	t.SetLoopBars(0, loopBars)
	if !t.Started() {
		t.Start()
	}

	r.mu.Lock()
	r.state = lofield.StatePlaying
	r.logEventLocked("play", "")
	r.mu.Unlock()
	r.notify()
	return nil
}

// Stop tears the current session down. Always safe to call, in any state,
// and never returns an error: teardown failures are logged per object.
func (r *Runtime) Stop() {
	r.bridge.Stop()

	r.mu.Lock()
	teardown := r.teardown
	r.teardown = nil
	r.resources = nil
	ctx := r.ctx
	r.mu.Unlock()

	if teardown != nil {
		teardown()
	}
	if ctx != nil {
		t := ctx.Transport()
		t.Stop()
		t.CancelAll()
		t.ResetPosition()
	}

	r.mu.Lock()
	if r.initialized {
		r.state = lofield.StateReady
	} else {
		r.state = lofield.StateIdle
	}
	r.logEventLocked("stop", "")
	r.mu.Unlock()
	r.notify()
}

// Reset forces a Stop, releases the audio output and clears the event
// history, returning to idle regardless of prior initialization. Used for
// hot reload and test isolation.
func (r *Runtime) Reset() {
	r.Stop()

	r.mu.Lock()
	ctx := r.ctx
	audio := r.audio
	r.ctx = nil
	r.audio = nil
	r.initialized = false
	r.events = nil
	r.state = lofield.StateIdle
	r.mu.Unlock()

	if ctx != nil {
		if err := ctx.Close(); err != nil {
			slog.Error("closing render context", "error", err)
		}
	}
	if audio != nil {
		if err := audio.Close(); err != nil {
			slog.Error("closing audio output", "error", err)
		}
	}
	r.notify()
}

// Transport returns the live transport clock, or nil before Init.
func (r *Runtime) Transport() *graph.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return nil
	}
	return r.ctx.Transport()
}

// State returns the current lifecycle state.
func (r *Runtime) State() lofield.RuntimeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Events returns the bounded event log, newest first.
func (r *Runtime) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Subscribe registers an observer called after every state or event-log
// change, and returns its unsubscribe function.
func (r *Runtime) Subscribe(fn func()) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *Runtime) logEventLocked(kind, message string) {
	r.events = append([]Event{{Kind: kind, At: time.Now(), Message: message}}, r.events...)
	if len(r.events) > eventLogCapacity {
		r.events = r.events[:eventLogCapacity]
	}
}

func (r *Runtime) notify() {
	r.mu.Lock()
	subs := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// disposeAll releases every tracked object; one failing disposal never
// blocks the rest.
func disposeAll(disposables []Disposable) {
	for _, d := range disposables {
		func() {
			defer func() {
				if p := recover(); p != nil {
					slog.Error("disposing tracked object", "panic", p)
				}
			}()
			d.Dispose()
		}()
	}
}

// awaitReady blocks until every tracked object that gates on asynchronous
// precomputation is ready. Readiness failures and timeouts count as
// evaluation-class failures.
func awaitReady(disposables []Disposable, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, d := range disposables {
		readier, ok := d.(graph.Readier)
		if !ok {
			continue
		}
		select {
		case <-readier.Ready():
			if err := readier.Err(); err != nil {
				return fmt.Errorf("effect precompute failed: %w", err)
			}
		case <-deadline.C:
			return errors.New("timed out waiting for effect readiness")
		}
	}
	return nil
}

// triggerHook adapts the bridge's trigger intake into the global function
// instrumented code calls: (line, note?, kind?).
func triggerHook(b *Bridge) script.NativeFunc {
	return func(args []script.Value) (script.Value, error) {
		if len(args) == 0 {
			return nil, nil
		}
		line, ok := script.Number(args[0])
		if !ok {
			return nil, nil
		}
		var note string
		if len(args) > 1 && args[1] != nil {
			note = script.ToString(args[1])
		}
		kind := lofield.TriggerNote
		if len(args) > 2 {
			if s, ok := args[2].(string); ok {
				switch k := lofield.TriggerKind(s); k {
				case lofield.TriggerNote, lofield.TriggerChord, lofield.TriggerRest, lofield.TriggerEffect:
					kind = k
				}
			}
		}
		b.EmitTrigger(int(line), note, kind)
		return nil, nil
	}
}
