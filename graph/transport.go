package graph

import (
	"fmt"
	"math"
	"sync"
)

type (
	// Transport is the shared musical clock of a Context: tempo, swing,
	// loop bounds and the scheduler all time-based events go through.
	// Scheduled callbacks fire sample-accurately inside the render loop, in
	// chronological order, on the rendering goroutine. The transport
	// position only advances while started; the schedule survives
	// start/stop but not CancelAll.
	Transport struct {
		mu         sync.Mutex
		sampleRate int
		bpm        float64
		swing      float64 // 0..1, delays offbeat sixteenths
		started    bool
		loop       bool
		loopStart  float64 // ticks; display position wraps into [loopStart, loopEnd)
		loopEnd    float64
		tick       float64 // absolute musical position in ticks, never wraps
		elapsed    int64   // samples rendered while started; the schedule time base
		nextID     int
		oneShots   map[int]*oneShot
		repeats    map[int]*repeatTask
	}

	// Callback receives the transport-time in seconds the event was
	// scheduled for, which may be marginally behind the current position
	// when several events share a render chunk.
	Callback func(seconds float64)

	oneShot struct {
		at int64 // absolute sample on the elapsed timeline
		fn Callback
	}

	repeatTask struct {
		interval float64 // ticks
		next     float64 // tick of the next fire
		fn       Callback
	}
)

const DefaultBPM = 84

func newTransport(sampleRate int) *Transport {
	return &Transport{
		sampleRate: sampleRate,
		bpm:        DefaultBPM,
		oneShots:   make(map[int]*oneShot),
		repeats:    make(map[int]*repeatTask),
	}
}

func (t *Transport) samplesPerTick() float64 {
	return float64(t.sampleRate) * 60 / (t.bpm * TicksPerQuarter)
}

func (t *Transport) Start() {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
}

func (t *Transport) Stop() {
	t.mu.Lock()
	t.started = false
	t.mu.Unlock()
}

func (t *Transport) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// ResetPosition rewinds the clock to the origin without touching the
// schedule: repeats fire again from their original offsets.
func (t *Transport) ResetPosition() {
	t.mu.Lock()
	t.tick = 0
	t.elapsed = 0
	for _, r := range t.repeats {
		r.next = math.Mod(r.next, r.interval)
	}
	t.mu.Unlock()
}

func (t *Transport) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	t.mu.Lock()
	t.bpm = bpm
	t.mu.Unlock()
}

func (t *Transport) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

func (t *Transport) SetSwing(amount float64) {
	t.mu.Lock()
	t.swing = math.Max(0, math.Min(1, amount))
	t.mu.Unlock()
}

func (t *Transport) Swing() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swing
}

// SetLoopBars makes the display position wrap over the given bar range.
// Scheduled repeats are unaffected; they keep their own musical grid.
func (t *Transport) SetLoopBars(startBar, endBar int) {
	t.mu.Lock()
	t.loop = endBar > startBar
	t.loopStart = float64(startBar * TicksPerBar)
	t.loopEnd = float64(endBar * TicksPerBar)
	t.mu.Unlock()
}

// Seconds returns the transport time: how long the clock has been running,
// excluding stopped periods.
func (t *Transport) Seconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.elapsed) / float64(t.sampleRate)
}

func (t *Transport) displayTick() float64 {
	if t.loop && t.tick >= t.loopEnd {
		span := t.loopEnd - t.loopStart
		return t.loopStart + math.Mod(t.tick-t.loopStart, span)
	}
	return t.tick
}

// Position returns the native position string in bars:beats:sixteenths
// form, all 0-based, sixteenths fractional.
func (t *Transport) Position() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	tick := t.displayTick()
	bars := int(tick) / TicksPerBar
	rem := tick - float64(bars*TicksPerBar)
	beats := int(rem) / TicksPerQuarter
	rem -= float64(beats * TicksPerQuarter)
	sixteenths := math.Round(rem/TicksPerSixteenth*1000) / 1000
	return fmt.Sprintf("%d:%d:%g", bars, beats, sixteenths)
}

// ScheduleOnce schedules fn to fire once the transport reaches the given
// time in seconds. Returns an id usable with Cancel.
func (t *Transport) ScheduleOnce(seconds float64, fn Callback) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.oneShots[id] = &oneShot{at: int64(seconds * float64(t.sampleRate)), fn: fn}
	return id
}

// ScheduleRepeat schedules fn to fire every interval ticks, the first fire
// offset ticks from the current position. Returns an id usable with Cancel.
func (t *Transport) ScheduleRepeat(interval, offset float64, fn Callback) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.repeats[id] = &repeatTask{interval: interval, next: t.tick + offset, fn: fn}
	return id
}

func (t *Transport) Cancel(id int) {
	t.mu.Lock()
	delete(t.oneShots, id)
	delete(t.repeats, id)
	t.mu.Unlock()
}

// CancelAll drops every scheduled callback, one-shot and repeating alike.
func (t *Transport) CancelAll() {
	t.mu.Lock()
	t.oneShots = make(map[int]*oneShot)
	t.repeats = make(map[int]*repeatTask)
	t.mu.Unlock()
}

// swingSamples returns the extra delay applied to an event on the given
// tick: offbeat sixteenths are pushed late by up to half a sixteenth.
func (t *Transport) swingSamples(tick float64) float64 {
	if t.swing <= 0 {
		return 0
	}
	idx := int(math.Floor(tick/TicksPerSixteenth + 1e-9))
	if idx%2 == 0 {
		return 0
	}
	return t.swing * 0.5 * TicksPerSixteenth * t.samplesPerTick()
}

func (t *Transport) repeatDueSample(r *repeatTask) int64 {
	delta := (r.next - t.tick) * t.samplesPerTick()
	return t.elapsed + int64(math.Ceil(delta+t.swingSamples(r.next)))
}

// framesUntilNextEvent tells the render loop how many frames it can safely
// render before a scheduled callback is due. Returns max when the transport
// is stopped.
func (t *Transport) framesUntilNextEvent(max int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return max
	}
	d := int64(max)
	for _, o := range t.oneShots {
		if delta := o.at - t.elapsed; delta < d {
			d = delta
		}
	}
	for _, r := range t.repeats {
		if delta := t.repeatDueSample(r) - t.elapsed; delta < d {
			d = delta
		}
	}
	if d < 0 {
		d = 0
	}
	return int(d)
}

// advance moves the clock forward by n rendered frames.
func (t *Transport) advance(n int) {
	t.mu.Lock()
	if t.started {
		t.elapsed += int64(n)
		t.tick += float64(n) / t.samplesPerTick()
	}
	t.mu.Unlock()
}

// fireDue invokes every callback whose time has come, earliest first. The
// transport lock is not held during the invocation so callbacks are free to
// schedule further events.
func (t *Transport) fireDue() {
	for {
		t.mu.Lock()
		if !t.started {
			t.mu.Unlock()
			return
		}
		var fn Callback
		var bestAt int64 = math.MaxInt64
		bestOne := -1
		bestRep := -1
		for id, o := range t.oneShots {
			if o.at <= t.elapsed && o.at < bestAt {
				bestAt, fn, bestOne, bestRep = o.at, o.fn, id, -1
			}
		}
		for id, r := range t.repeats {
			if at := t.repeatDueSample(r); at <= t.elapsed && at < bestAt {
				bestAt, fn, bestOne, bestRep = at, r.fn, -1, id
			}
		}
		if fn == nil {
			t.mu.Unlock()
			return
		}
		if bestOne >= 0 {
			delete(t.oneShots, bestOne)
		} else {
			t.repeats[bestRep].next += t.repeats[bestRep].interval
		}
		seconds := float64(bestAt) / float64(t.sampleRate)
		t.mu.Unlock()
		fn(seconds)
	}
}
