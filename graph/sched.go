package graph

import (
	"fmt"
	"math/rand"
	"sync"
)

// Sequencer is the common core of the Sequence, Pattern and Loop
// constructors: a callback fired on a repeating musical subdivision,
// optionally cycling through a list of values. The callback runs inside the
// transport scheduler, so anything it triggers is sample-accurate.
type Sequencer struct {
	mu        sync.Mutex
	transport *Transport
	interval  float64 // ticks
	values    []any
	random    bool
	cb        func(seconds float64, value any)
	idx       int
	id        int
	started   bool
	disposed  bool
	rng       *rand.Rand
}

func newSequencer(t *Transport, cb func(float64, any), values []any, interval float64, random bool) *Sequencer {
	return &Sequencer{
		transport: t,
		interval:  interval,
		values:    values,
		random:    random,
		cb:        cb,
		rng:       rand.New(rand.NewSource(3)),
	}
}

// NewSequence fires cb once per subdivision, cycling through values in
// order.
func NewSequence(t *Transport, cb func(float64, any), values []any, subdivision string) (*Sequencer, error) {
	ticks, err := SubdivisionTicks(subdivision)
	if err != nil {
		return nil, err
	}
	return newSequencer(t, cb, values, ticks, false), nil
}

// NewPattern is a Sequence with a pattern mode; only "up" (in order) and
// "random" are supported.
func NewPattern(t *Transport, cb func(float64, any), values []any, subdivision, mode string) (*Sequencer, error) {
	ticks, err := SubdivisionTicks(subdivision)
	if err != nil {
		return nil, err
	}
	switch mode {
	case "", "up":
		return newSequencer(t, cb, values, ticks, false), nil
	case "random":
		return newSequencer(t, cb, values, ticks, true), nil
	}
	return nil, fmt.Errorf("unsupported pattern mode %q", mode)
}

// NewLoop fires cb once per interval with no value.
func NewLoop(t *Transport, cb func(float64, any), interval any) (*Sequencer, error) {
	var ticks float64
	switch v := interval.(type) {
	case string:
		var err error
		if ticks, err = SubdivisionTicks(v); err != nil {
			return nil, err
		}
	case float64:
		ticks = v * t.BPM() / 60 * TicksPerQuarter // seconds to ticks
	default:
		return nil, fmt.Errorf("invalid loop interval %v", interval)
	}
	return newSequencer(t, cb, nil, ticks, false), nil
}

// Start registers the sequencer on the transport, offset seconds from the
// origin. Idempotent.
func (s *Sequencer) Start(offsetSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.disposed {
		return
	}
	offsetTicks := offsetSeconds * s.transport.BPM() / 60 * TicksPerQuarter
	s.id = s.transport.ScheduleRepeat(s.interval, offsetTicks, s.fire)
	s.started = true
}

// Stop deregisters the sequencer; Start may be called again afterwards.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.transport.Cancel(s.id)
	s.started = false
}

func (s *Sequencer) fire(seconds float64) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var value any
	if len(s.values) > 0 {
		if s.random {
			value = s.values[s.rng.Intn(len(s.values))]
		} else {
			value = s.values[s.idx%len(s.values)]
			s.idx++
		}
	}
	cb := s.cb
	s.mu.Unlock()
	cb(seconds, value)
}

func (s *Sequencer) Dispose() {
	s.Stop()
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}
