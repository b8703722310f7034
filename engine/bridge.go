package engine

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellfyi/lofield"
	"github.com/mitchellfyi/lofield/graph"
)

const (
	// minimum time between poll samples, regardless of host timer rate
	bridgePollInterval = 16 * time.Millisecond
	// how long a trigger keeps its source line highlighted
	triggerDecay = 150 * time.Millisecond
	// trigger history capacity; oldest events are dropped first
	triggerCapacity = 100
)

// Bridge samples the transport clock and the trigger intake on a fixed
// cadence and republishes them to subscribers. It runs independently of the
// runtime manager: the only coupling is the transport handed to Start and
// the trigger hook feeding EmitTrigger. Trigger intake notifies
// immediately so highlighting feels instant; decay and removal are polled.
type Bridge struct {
	mu        sync.Mutex
	now       func() time.Time
	transport *graph.Transport
	running   bool
	stop      chan struct{}

	snapshot lofield.TransportSnapshot
	triggers *ringBuffer[lofield.TriggerEvent]
	active   map[int]time.Time // line number to last trigger time

	nextSub       int
	transportSubs map[int]func(lofield.TransportSnapshot)
	triggerSubs   map[int]func([]int)
}

var (
	liveBridge     *Bridge
	liveBridgeOnce sync.Once
)

// LiveBridge returns the process-wide bridge instance.
func LiveBridge() *Bridge {
	liveBridgeOnce.Do(func() {
		liveBridge = NewBridge(time.Now)
	})
	return liveBridge
}

// NewBridge builds an independent bridge with its own clock source. The
// clock is injectable so decay behavior is testable.
func NewBridge(now func() time.Time) *Bridge {
	return &Bridge{
		now:           now,
		triggers:      newRingBuffer[lofield.TriggerEvent](triggerCapacity),
		active:        make(map[int]time.Time),
		transportSubs: make(map[int]func(lofield.TransportSnapshot)),
		triggerSubs:   make(map[int]func([]int)),
	}
}

// Start begins polling the given transport. Idempotent; a second Start
// while running only swaps the transport.
func (b *Bridge) Start(t *graph.Transport) {
	b.mu.Lock()
	b.transport = t
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stop = make(chan struct{})
	stop := b.stop
	b.mu.Unlock()
	go b.poll(stop)
}

// Stop halts the polling loop. Idempotent.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stop)
	b.mu.Unlock()
}

func (b *Bridge) poll(stop chan struct{}) {
	ticker := time.NewTicker(bridgePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		// re-check under the lock inside tick; Stop may race the ticker
		b.tick()
	}
}

func (b *Bridge) tick() {
	b.mu.Lock()
	if !b.running || b.transport == nil {
		b.mu.Unlock()
		return
	}
	t := b.transport
	var publish *lofield.TransportSnapshot
	if t.Started() {
		next := snapshotFromTransport(t)
		if meaningfulChange(b.snapshot, next) {
			b.snapshot = next
			publish = &next
		}
	} else if b.snapshot.Playing {
		// transport-stopped transition: one final snapshot
		next := b.snapshot
		next.Playing = false
		b.snapshot = next
		publish = &next
	}

	before := len(b.active)
	cutoff := b.now().Add(-triggerDecay)
	for line, at := range b.active {
		if !at.After(cutoff) {
			delete(b.active, line)
		}
	}
	var lines []int
	if len(b.active) != before {
		lines = b.activeLinesLocked()
	}
	transportSubs, triggerSubs := b.subscribersLocked()
	b.mu.Unlock()

	if publish != nil {
		for _, fn := range transportSubs {
			fn(*publish)
		}
	}
	if lines != nil {
		for _, fn := range triggerSubs {
			fn(lines)
		}
	}
}

// EmitTrigger records a trigger event and immediately marks its line
// active. Called synchronously from scheduled callbacks in instrumented
// code; safe to call with no subscribers.
func (b *Bridge) EmitTrigger(line int, note string, kind lofield.TriggerKind) {
	if line < 1 {
		return
	}
	b.mu.Lock()
	now := b.now()
	b.triggers.Push(lofield.TriggerEvent{Line: line, At: now, Note: note, Kind: kind})
	b.active[line] = now
	lines := b.activeLinesLocked()
	_, triggerSubs := b.subscribersLocked()
	b.mu.Unlock()
	for _, fn := range triggerSubs {
		fn(lines)
	}
}

// Reset clears the snapshot, the trigger history and the active set, and
// notifies both subscriber groups.
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.snapshot = defaultSnapshot()
	b.triggers.Clear()
	b.active = make(map[int]time.Time)
	snapshot := b.snapshot
	transportSubs, triggerSubs := b.subscribersLocked()
	b.mu.Unlock()
	for _, fn := range transportSubs {
		fn(snapshot)
	}
	for _, fn := range triggerSubs {
		fn(nil)
	}
}

// TransportSnapshot returns the last published snapshot without forcing a
// recompute.
func (b *Bridge) TransportSnapshot() lofield.TransportSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == (lofield.TransportSnapshot{}) {
		return defaultSnapshot()
	}
	return b.snapshot
}

// ActiveLines returns the currently highlighted line numbers, ascending.
func (b *Bridge) ActiveLines() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeLinesLocked()
}

// TriggerEvents returns the retained trigger history, oldest first.
func (b *Bridge) TriggerEvents() []lofield.TriggerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]lofield.TriggerEvent, 0, b.triggers.Len())
	b.triggers.Do(func(e lofield.TriggerEvent) {
		events = append(events, e)
	})
	return events
}

// SubscribeTransport registers a transport snapshot listener and returns
// its unsubscribe function.
func (b *Bridge) SubscribeTransport(fn func(lofield.TransportSnapshot)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.transportSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.transportSubs, id)
		b.mu.Unlock()
	}
}

// SubscribeTriggers registers an active-line listener and returns its
// unsubscribe function.
func (b *Bridge) SubscribeTriggers(fn func([]int)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.triggerSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.triggerSubs, id)
		b.mu.Unlock()
	}
}

func (b *Bridge) activeLinesLocked() []int {
	lines := make([]int, 0, len(b.active))
	for line := range b.active {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

func (b *Bridge) subscribersLocked() ([]func(lofield.TransportSnapshot), []func([]int)) {
	transport := make([]func(lofield.TransportSnapshot), 0, len(b.transportSubs))
	for _, fn := range b.transportSubs {
		transport = append(transport, fn)
	}
	trigger := make([]func([]int), 0, len(b.triggerSubs))
	for _, fn := range b.triggerSubs {
		trigger = append(trigger, fn)
	}
	return transport, trigger
}

func defaultSnapshot() lofield.TransportSnapshot {
	return lofield.TransportSnapshot{
		PositionLabel: "0:0:0",
		BPM:           graph.DefaultBPM,
		Bar:           1,
		Beat:          1,
	}
}

// snapshotFromTransport converts the transport's native bars:beats:sixteenths
// position into the published 1-indexed form.
func snapshotFromTransport(t *graph.Transport) lofield.TransportSnapshot {
	pos := t.Position()
	bars, beats, sixteenths := parsePosition(pos)
	return lofield.TransportSnapshot{
		PositionLabel:     pos,
		Seconds:           t.Seconds(),
		BPM:               t.BPM(),
		Playing:           true,
		Bar:               bars + 1,
		Beat:              beats + 1,
		ProgressWithinBar: (float64(beats)*4 + sixteenths) / 16,
	}
}

func parsePosition(pos string) (bars, beats int, sixteenths float64) {
	parts := strings.Split(pos, ":")
	if len(parts) != 3 {
		return 0, 0, 0
	}
	bars, _ = strconv.Atoi(parts[0])
	beats, _ = strconv.Atoi(parts[1])
	sixteenths, _ = strconv.ParseFloat(parts[2], 64)
	return bars, beats, sixteenths
}

// meaningfulChange implements the publish coalescing: bar, beat, rounded
// bpm, the playing flag, or a visible progress move.
func meaningfulChange(prev, next lofield.TransportSnapshot) bool {
	return prev.Bar != next.Bar ||
		prev.Beat != next.Beat ||
		math.Round(prev.BPM) != math.Round(next.BPM) ||
		prev.Playing != next.Playing ||
		math.Abs(prev.ProgressWithinBar-next.ProgressWithinBar) > 0.01
}
