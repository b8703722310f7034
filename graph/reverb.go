package graph

import (
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/mjibson/go-dsp/fft"
)

type (
	// Reverb is a comb/allpass network with a short convolution stage for
	// early reflections. The early-reflection taps are derived from an
	// FFT-smoothed decaying noise impulse, which is expensive enough to be
	// precomputed on a background goroutine: the node implements Readier
	// and must not be played through before Ready is closed.
	Reverb struct {
		mixer
		sampleRate int
		wet        param
		combs      [2][numCombs]comb
		allpasses  [2][numAllpasses]allpass
		early      [earlyTaps]float32
		earlyHist  [2][earlyTaps]float32
		earlyIdx   int
		readyFlag  atomic.Bool
		ready      chan struct{}
		err        error
	}

	comb struct {
		buf      []float32
		idx      int
		feedback float32
		damp     float32
		store    float32
	}

	allpass struct {
		buf []float32
		idx int
	}
)

const (
	numCombs     = 4
	numAllpasses = 2
	earlyTaps    = 64
	maxDecay     = 10.0
)

// Freeverb-derived tunings at 44100 Hz, scaled to the context rate.
var (
	combTunings    = [numCombs]int{1116, 1188, 1277, 1356}
	allpassTunings = [numAllpasses]int{556, 441}
)

func NewReverb(sampleRate int, decaySeconds float64) *Reverb {
	if decaySeconds <= 0 {
		decaySeconds = 1.5
	}
	if decaySeconds > maxDecay {
		decaySeconds = maxDecay
	}
	r := &Reverb{sampleRate: sampleRate, ready: make(chan struct{})}
	r.wet.init(0.35)
	scale := float64(sampleRate) / 44100
	for c := 0; c < 2; c++ {
		// spread the right channel slightly for width
		stereoSpread := c * 23
		for i := range r.combs[c] {
			frames := int(float64(combTunings[i])*scale) + stereoSpread
			r.combs[c][i] = comb{
				buf:      make([]float32, frames),
				feedback: float32(math.Pow(10, -3*float64(frames)/(decaySeconds*float64(sampleRate)))),
				damp:     0.25,
			}
		}
		for i := range r.allpasses[c] {
			frames := int(float64(allpassTunings[i])*scale) + stereoSpread
			r.allpasses[c][i] = allpass{buf: make([]float32, frames)}
		}
	}
	go r.precompute(decaySeconds)
	return r
}

// precompute builds the early-reflection taps from an FFT-lowpassed
// decaying noise impulse and then marks the node ready.
func (r *Reverb) precompute(decaySeconds float64) {
	defer close(r.ready)
	frames := int(decaySeconds * float64(r.sampleRate))
	n := 1
	for n < frames {
		n <<= 1
	}
	rng := rand.New(rand.NewSource(1))
	x := make([]complex128, n)
	for i := 0; i < frames; i++ {
		env := math.Exp(-3 * float64(i) / float64(frames))
		x[i] = complex((rng.Float64()*2-1)*env, 0)
	}
	spectrum := fft.FFT(x)
	// brickwall the top half of the spectrum to tame the noise fizz
	for k := n/4 + 1; k < n-n/4; k++ {
		spectrum[k] = 0
	}
	smoothed := fft.IFFT(spectrum)
	var norm float64
	for i := 0; i < earlyTaps; i++ {
		norm += math.Abs(real(smoothed[i]))
	}
	if norm == 0 {
		norm = 1
	}
	for i := 0; i < earlyTaps; i++ {
		r.early[i] = float32(real(smoothed[i]) / norm)
	}
	r.readyFlag.Store(true)
}

func (r *Reverb) Ready() <-chan struct{} { return r.ready }
func (r *Reverb) Err() error             { return r.err }

func (r *Reverb) SetWet(wet, rampSeconds float64) {
	r.wet.set(math.Max(0, math.Min(1, wet)), rampSeconds, r.sampleRate)
}

func (r *Reverb) Wet() float64 { return r.wet.current() }

func (r *Reverb) Process(left, right []float32) {
	r.renderInputs(left, right)
	wet := float32(r.wet.step(len(left)))
	if wet == 0 {
		return
	}
	useEarly := r.readyFlag.Load()
	for i := range left {
		for c, buf := range [2][]float32{left, right} {
			dry := buf[i]
			var w float32
			if useEarly {
				hist := &r.earlyHist[c]
				hist[r.earlyIdx] = dry
				for t := 0; t < earlyTaps; t++ {
					w += r.early[t] * hist[(r.earlyIdx-t+earlyTaps)%earlyTaps]
				}
			}
			for j := range r.combs[c] {
				w += r.combs[c][j].process(dry * 0.25)
			}
			for j := range r.allpasses[c] {
				w = r.allpasses[c][j].process(w)
			}
			buf[i] = dry + wet*w
		}
		r.earlyIdx = (r.earlyIdx + 1) % earlyTaps
	}
	clampBuffer(left)
	clampBuffer(right)
}

func (cb *comb) process(in float32) float32 {
	out := cb.buf[cb.idx]
	cb.store = out*(1-cb.damp) + cb.store*cb.damp
	cb.buf[cb.idx] = in + cb.store*cb.feedback
	cb.idx++
	if cb.idx == len(cb.buf) {
		cb.idx = 0
	}
	return out
}

func (ap *allpass) process(in float32) float32 {
	delayed := ap.buf[ap.idx]
	out := delayed - in
	ap.buf[ap.idx] = in + delayed*0.5
	ap.idx++
	if ap.idx == len(ap.buf) {
		ap.idx = 0
	}
	return out
}

func (r *Reverb) Dispose() { r.markDisposed() }
