package graph

import (
	"math"
)

type (
	// Filter is a resonant biquad over the sum of its inputs. Frequency
	// changes ramp at block granularity, which is enough to keep automation
	// sweeps free of zipper noise.
	Filter struct {
		mixer
		kind       string // "lowpass" or "highpass"
		sampleRate int
		freq       param
		q          float64
		state      [2]biquadState
	}

	biquadState struct {
		x1, x2, y1, y2 float32
	}

	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}
)

func NewFilter(sampleRate int, kind string, frequency, q float64) *Filter {
	if kind != "highpass" {
		kind = "lowpass"
	}
	if frequency <= 0 {
		frequency = 800
	}
	if q <= 0 {
		q = 0.7071
	}
	f := &Filter{kind: kind, sampleRate: sampleRate, q: q}
	f.freq.init(frequency)
	return f
}

func (f *Filter) Kind() string { return f.kind }

// SetFrequency glides the cutoff to the given value over rampSeconds.
func (f *Filter) SetFrequency(hz, rampSeconds float64) {
	if hz < 10 {
		hz = 10
	}
	if max := float64(f.sampleRate) * 0.45; hz > max {
		hz = max
	}
	f.freq.set(hz, rampSeconds, f.sampleRate)
}

func (f *Filter) Frequency() float64 { return f.freq.current() }

func (f *Filter) coefficients(hz float64) biquadCoeff {
	w0 := 2 * math.Pi * hz / float64(f.sampleRate)
	cosw0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * f.q)
	var b0, b1, b2 float64
	if f.kind == "highpass" {
		b0 = (1 + cosw0) / 2
		b1 = -(1 + cosw0)
		b2 = (1 + cosw0) / 2
	} else {
		b0 = (1 - cosw0) / 2
		b1 = 1 - cosw0
		b2 = (1 - cosw0) / 2
	}
	a0 := 1 + alpha
	return biquadCoeff{
		b0: float32(b0 / a0),
		b1: float32(b1 / a0),
		b2: float32(b2 / a0),
		a1: float32(-2 * cosw0 / a0),
		a2: float32((1 - alpha) / a0),
	}
}

func (f *Filter) Process(left, right []float32) {
	f.renderInputs(left, right)
	c := f.coefficients(f.freq.step(len(left)))
	f.state[0].run(c, left)
	f.state[1].run(c, right)
}

func (s *biquadState) run(c biquadCoeff, buf []float32) {
	x1, x2, y1, y2 := s.x1, s.x2, s.y1, s.y2
	for i, x := range buf {
		y := c.b0*x + c.b1*x1 + c.b2*x2 - c.a1*y1 - c.a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		buf[i] = y
	}
	s.x1, s.x2, s.y1, s.y2 = x1, x2, y1, y2
}

func (f *Filter) Dispose() { f.markDisposed() }
