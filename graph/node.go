package graph

import (
	"sync"

	"github.com/viterin/vek/vek32"
)

type (
	// Node is anything that renders audio into a stereo pair of sample
	// slices. Process overwrites the slices completely.
	Node interface {
		Process(left, right []float32)
		Dispose()
	}

	// Readier is implemented by nodes that need asynchronous precomputation
	// before they are safe to play through. Ready is closed when the
	// precompute finishes; Err reports its outcome. The runtime manager and
	// the offline renderer await every tracked Readier before starting the
	// clock.
	Readier interface {
		Ready() <-chan struct{}
		Err() error
	}

	// Sink is a node audio can be routed into: effects and the
	// destination.
	Sink interface {
		addInput(n Node)
		removeInput(n Node)
	}

	// mixer is the common input stage of effects and the destination: it
	// sums the outputs of all connected nodes. Config is guarded by mu;
	// Process copies what it needs under the lock and renders without it,
	// so nodes may reconfigure each other from transport callbacks.
	mixer struct {
		mu       sync.Mutex
		inputs   []Node
		scratchL []float32
		scratchR []float32
		disposed bool
	}

	// param is a numeric node parameter with linear ramping, so automation
	// can glide instead of jumping.
	param struct {
		mu        sync.Mutex
		value     float64
		target    float64
		remaining int // frames left in the ramp
	}
)

func (m *mixer) addInput(n Node) {
	m.mu.Lock()
	m.inputs = append(m.inputs, n)
	m.mu.Unlock()
}

func (m *mixer) removeInput(n Node) {
	m.mu.Lock()
	for i, in := range m.inputs {
		if in == n {
			m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
}

func (m *mixer) markDisposed() (first bool) {
	m.mu.Lock()
	first = !m.disposed
	m.disposed = true
	m.inputs = nil
	m.mu.Unlock()
	return first
}

// renderInputs sums every connected node into left/right.
func (m *mixer) renderInputs(left, right []float32) {
	m.mu.Lock()
	inputs := append([]Node(nil), m.inputs...)
	if len(m.scratchL) < len(left) {
		m.scratchL = make([]float32, len(left))
		m.scratchR = make([]float32, len(left))
	}
	m.mu.Unlock()
	vek32.Zeros_Into(left, len(left))
	vek32.Zeros_Into(right, len(right))
	for _, in := range inputs {
		sl := m.scratchL[:len(left)]
		sr := m.scratchR[:len(right)]
		in.Process(sl, sr)
		vek32.Add_Inplace(left, sl)
		vek32.Add_Inplace(right, sr)
	}
}

func (p *param) init(value float64) {
	p.value = value
	p.target = value
}

func (p *param) set(target float64, rampSeconds float64, sampleRate int) {
	p.mu.Lock()
	p.target = target
	p.remaining = int(rampSeconds * float64(sampleRate))
	if p.remaining <= 0 {
		p.value = target
	}
	p.mu.Unlock()
}

// step advances the ramp by n frames and returns the parameter value to use
// for the block. A block-granular ramp is accurate enough at render block
// sizes.
func (p *param) step(n int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining > 0 {
		frac := float64(n) / float64(p.remaining)
		if frac > 1 {
			frac = 1
		}
		p.value += (p.target - p.value) * frac
		p.remaining -= n
		if p.remaining <= 0 {
			p.value = p.target
		}
	}
	return p.value
}

func (p *param) current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Connect routes a node's output into a sink. Connecting to a non-sink
// target is a no-op; the script layer reports that as an error instead.
func Connect(n Node, target any) bool {
	sink, ok := target.(Sink)
	if !ok {
		return false
	}
	sink.addInput(n)
	return true
}

type (
	// Gain scales the summed signal of its inputs.
	Gain struct {
		mixer
		gain param
	}

	// Destination is the master output node of a context: it sums all
	// routed signals and hard-limits them into [-1, 1].
	Destination struct {
		mixer
	}
)

func NewGain(level float64) *Gain {
	g := &Gain{}
	g.gain.init(level)
	return g
}

func (g *Gain) SetGain(level, rampSeconds float64, sampleRate int) {
	g.gain.set(level, rampSeconds, sampleRate)
}

func (g *Gain) Gain() float64 { return g.gain.current() }

func (g *Gain) Process(left, right []float32) {
	g.renderInputs(left, right)
	level := float32(g.gain.step(len(left)))
	vek32.MulNumber_Inplace(left, level)
	vek32.MulNumber_Inplace(right, level)
}

func (g *Gain) Dispose() { g.markDisposed() }

func newDestination() *Destination { return &Destination{} }

func (d *Destination) Process(left, right []float32) {
	d.renderInputs(left, right)
	clampBuffer(left)
	clampBuffer(right)
}

func (d *Destination) Dispose() { d.markDisposed() }

func clampBuffer(buf []float32) {
	for i, v := range buf {
		if v > 1 {
			buf[i] = 1
		} else if v < -1 {
			buf[i] = -1
		}
	}
}
